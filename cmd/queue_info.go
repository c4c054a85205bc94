package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/grovetools/fsdispatch/cli"
	"github.com/grovetools/fsdispatch/dispatch"
	"github.com/grovetools/fsdispatch/logging"
	"github.com/spf13/cobra"
)

// QueueInfo describes one dispatch queue.
type QueueInfo struct {
	Kind     string `json:"kind"`
	Priority string `json:"priority,omitempty"`
	Label    string `json:"label"`
	// RoundTrip is how long a synchronous no-op took, when probed.
	RoundTrip time.Duration `json:"round_trip_ns,omitempty"`
}

// NewQueueInfoCmd creates the `queue-info` command.
func NewQueueInfoCmd() *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "queue-info",
		Short: "Show the main and global dispatch queues",
		Long: `Lists the process-wide main queue and the four global queues with the
labels the native layer reports for them. With --probe each global queue
runs a no-op synchronously and the round trip is shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := collectQueueInfo(probe)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(infos, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal queue info: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			pretty := logging.NewPrettyLogger().WithWriter(out)
			pretty.Field("backend", dispatch.Backend())
			pretty.Divider()
			for _, info := range infos {
				name := info.Kind
				if info.Priority != "" {
					name += "/" + info.Priority
				}
				value := info.Label
				if info.RoundTrip > 0 {
					value += fmt.Sprintf(" (%s)", info.RoundTrip)
				}
				pretty.Field(name, value)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Run a synchronous no-op on each global queue")
	return cmd
}

func collectQueueInfo(probe bool) ([]QueueInfo, error) {
	main := dispatch.Main()
	defer main.Release()
	infos := []QueueInfo{{Kind: main.Kind().String(), Label: main.Label()}}

	for _, p := range []dispatch.Priority{
		dispatch.PriorityHigh,
		dispatch.PriorityDefault,
		dispatch.PriorityLow,
		dispatch.PriorityBackground,
	} {
		q, err := dispatch.Global(p)
		if err != nil {
			return nil, err
		}
		info := QueueInfo{Kind: q.Kind().String(), Priority: p.String(), Label: q.Label()}
		if probe {
			start := time.Now()
			q.Sync(func() {})
			info.RoundTrip = time.Since(start)
		}
		q.Release()
		infos = append(infos, info)
	}
	return infos, nil
}
