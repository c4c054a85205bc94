package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/grovetools/fsdispatch/cli"
	"github.com/grovetools/fsdispatch/errors"
	"github.com/grovetools/fsdispatch/fsevents"
	"github.com/grovetools/fsdispatch/logging"
	"github.com/grovetools/fsdispatch/pkg/profiling"
	"github.com/grovetools/fsdispatch/state"
	"github.com/grovetools/fsdispatch/watch"
	"github.com/spf13/cobra"
)

// jsonRecord is the JSON Lines form of one change record.
type jsonRecord struct {
	ID     uint64   `json:"id"`
	Path   string   `json:"path"`
	Flags  []string `json:"flags"`
	Raw    uint32   `json:"raw_flags"`
	Rescan bool     `json:"rescan,omitempty"`
}

type watchFlags struct {
	latency  time.Duration
	since    string
	create   cli.CreateFlagsValue
	exclude  []string
	ignore   []string
	label    string
	attr     cli.AttrValue
	priority cli.PriorityValue
	count    int
	timeout  time.Duration
	resume   bool
}

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	return newWatchCmd(&watchFlags{})
}

func newWatchCmd(f *watchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Stream file change batches",
		Long: `Subscribes to change notifications for the given paths and prints every
record as it is delivered. Paths, latency and flags default to the watch
section of fsdispatch.yml; command line flags override it.

Examples:
  # Watch the current directory
  fsdispatch watch .

  # Replay history since event 4242 as JSON Lines
  fsdispatch watch ~/src --since 4242 --json

  # Ignore editor swap files and stop after ten batches
  fsdispatch watch . --ignore '*.swp' --count 10

  # Pick up where the last run left off
  fsdispatch watch ~/src --resume
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, f)
		},
	}

	cmd.Flags().DurationVar(&f.latency, "latency", 0, "How long the stream waits to coalesce events")
	cmd.Flags().StringVar(&f.since, "since", "", "Where delivery starts: now, start, or an event id")
	cmd.Flags().Var(&f.create, "flag", "Stream creation flag, repeatable (e.g. file_events, watch_root, no_defer)")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Directories the stream should skip (at most 8)")
	cmd.Flags().StringSliceVar(&f.ignore, "ignore", nil, "Ignore patterns matched relative to the watched root")
	cmd.Flags().StringVar(&f.label, "label", "", "Label of the serial queue callbacks run on")
	cmd.Flags().Var(&f.attr, "attr", "Queue attribute: serial or concurrent")
	cmd.Flags().Var(&f.priority, "priority", "Use a global queue: high, default, low, or background")
	cmd.Flags().IntVar(&f.count, "count", 0, "Exit after this many batches (0 runs until interrupted)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Exit after this long (0 runs until interrupted)")
	cmd.Flags().BoolVar(&f.resume, "resume", false, "Start after the last event a previous --resume watch of these paths saw")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, f *watchFlags) error {
	logger := cli.GetLogger(cmd)
	opts := cli.GetOptions(cmd)

	span := profiling.Start("load config")
	cfg, err := cli.LoadConfig(cmd)
	span.Stop()
	if err != nil {
		return err
	}
	wopts, err := watch.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	if err := applyWatchFlags(cmd, f, args, &wopts); err != nil {
		return err
	}
	if len(wopts.Paths) == 0 {
		wopts.Paths = []string{"."}
	}
	wopts.Buffer = 64

	var store *state.Store
	if f.resume {
		if store, err = state.DefaultStore(); err != nil {
			return err
		}
		if !cmd.Flags().Changed("since") {
			if c, ok, err := store.Get(wopts.Paths); err != nil {
				logger.WithError(err).Warn("Ignoring unreadable cursor file")
			} else if ok {
				wopts.Since = fsevents.Since(fsevents.EventID(c.EventID))
			}
		}
	}

	span = profiling.Start("open watcher")
	w, err := watch.New(wopts)
	span.Stop()
	if err != nil {
		return err
	}
	defer w.Close()
	if store != nil {
		defer func() {
			id := uint64(w.LatestEventID())
			if err := store.Set(w.Roots(), id); err != nil {
				logger.WithError(err).Warn("Failed to save cursor")
				return
			}
			logger.WithField("event_id", id).WithField("file", store.Path()).Debug("Saved cursor")
		}()
	}

	logger.WithField("roots", w.Roots()).
		WithField("queue", w.QueueLabel()).
		WithField("since", wopts.Since).
		Debug("Watching")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	var print func(watch.Batch) error
	if opts.JSONOutput {
		defer routeLogs(cmd.ErrOrStderr())()
		enc := json.NewEncoder(out)
		print = func(b watch.Batch) error { return writeBatchJSON(enc, b) }
	} else {
		pretty := logging.NewPrettyLogger().WithWriter(out)
		for _, root := range w.Roots() {
			pretty.Path("watching", root)
		}
		pretty.Divider()
		print = func(b watch.Batch) error {
			writeBatchText(pretty, b)
			return nil
		}
	}

	return consume(ctx, w.Batches(), f.count, print)
}

// routeLogs points every logger's stderr sink at w so JSON Lines on stdout
// stay machine-readable. The returned func restores stderr.
func routeLogs(w io.Writer) func() {
	logging.SetGlobalOutput(w)
	return func() { logging.SetGlobalOutput(os.Stderr) }
}

// applyWatchFlags overrides opts with the flags given on the command line.
func applyWatchFlags(cmd *cobra.Command, f *watchFlags, args []string, opts *watch.Options) error {
	flags := cmd.Flags()
	if len(args) > 0 {
		opts.Paths = args
	}
	if flags.Changed("latency") {
		opts.Latency = f.latency
	}
	if flags.Changed("since") {
		since, err := parseSince(f.since)
		if err != nil {
			return err
		}
		opts.Since = since
	}
	if flags.Changed("flag") {
		opts.Flags = f.create.F
	}
	if flags.Changed("exclude") {
		opts.Exclude = f.exclude
	}
	if flags.Changed("ignore") {
		opts.Ignore = f.ignore
	}
	if flags.Changed("label") {
		opts.Queue.Label = f.label
		opts.Queue.Global = false
	}
	if flags.Changed("attr") {
		opts.Queue.Attr = f.attr.A
		opts.Queue.Global = false
	}
	if f.priority.Changed() {
		opts.Queue.Global = true
		opts.Queue.Priority = f.priority.P
	}
	return nil
}

func parseSince(s string) (fsevents.PointInTime, error) {
	switch s {
	case "", "now":
		return fsevents.SinceNow, nil
	case "start":
		return fsevents.SinceStartOfTime, nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fsevents.PointInTime{}, errors.InvalidInput("since", fmt.Sprintf("want now, start or an event id, got %q", s))
	}
	return fsevents.Since(fsevents.EventID(id)), nil
}

// consume hands batches to print until ctx ends, the channel closes or
// limit batches have been printed.
func consume(ctx context.Context, batches <-chan watch.Batch, limit int, print func(watch.Batch) error) error {
	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-batches:
			if !ok {
				return nil
			}
			if err := print(b); err != nil {
				return err
			}
			seen++
			if limit > 0 && seen >= limit {
				return nil
			}
		}
	}
}

func writeBatchText(p *logging.PrettyLogger, b watch.Batch) {
	for _, rec := range b.Records {
		p.Event(uint64(rec.ID), rec.Path, rec.Flags.String())
	}
	if b.Rescan {
		p.Warn("events were coalesced or dropped; rescan the affected directories")
	}
}

func writeBatchJSON(enc *json.Encoder, b watch.Batch) error {
	for _, rec := range b.Records {
		jr := jsonRecord{
			ID:     uint64(rec.ID),
			Path:   rec.Path,
			Flags:  flagNames(rec.Flags),
			Raw:    uint32(rec.Flags),
			Rescan: rec.Flags.NeedsRescan(),
		}
		if err := enc.Encode(jr); err != nil {
			return err
		}
	}
	return nil
}

func flagNames(f fsevents.EventFlags) []string {
	if f == fsevents.EventNone {
		return []string{}
	}
	return strings.Split(f.String(), "|")
}
