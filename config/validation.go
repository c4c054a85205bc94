package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/fsdispatch/errors"
)

// MaxExclude is the most exclusion paths a stream accepts.
const MaxExclude = 8

// Validate checks if the configuration is valid. It runs after SetDefaults.
func (c *Config) Validate() error {
	if _, err := c.Watch.LatencyDuration(); err != nil {
		return err
	}
	if _, _, err := c.Watch.SinceCursor(); err != nil {
		return err
	}
	if len(c.Watch.Exclude) > MaxExclude {
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("watch.exclude has %d entries, at most %d are allowed", len(c.Watch.Exclude), MaxExclude)).
			WithDetail("exclude", c.Watch.Exclude)
	}
	for _, p := range c.Watch.Paths {
		if strings.TrimSpace(p) == "" {
			return errors.New(errors.ErrCodeConfigValidation, "watch.paths cannot contain an empty path")
		}
	}
	if strings.ContainsRune(c.Queue.Label, 0) {
		return errors.New(errors.ErrCodeConfigValidation, "queue.label cannot contain NUL").
			WithDetail("label", c.Queue.Label)
	}
	return nil
}

// LatencyDuration parses Latency. An empty value means no coalescing.
func (w WatchConfig) LatencyDuration() (time.Duration, error) {
	if w.Latency == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(w.Latency)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid watch.latency").
			WithDetail("latency", w.Latency)
	}
	if d < 0 {
		return 0, errors.New(errors.ErrCodeConfigValidation, "watch.latency cannot be negative").
			WithDetail("latency", w.Latency)
	}
	return d, nil
}

// SinceCursor parses Since. It returns ok=false for "now" and "start", which
// have no event id; for a numeric value it returns the id.
func (w WatchConfig) SinceCursor() (id uint64, ok bool, err error) {
	switch strings.ToLower(w.Since) {
	case "", "now", "start":
		return 0, false, nil
	}
	id, err = strconv.ParseUint(w.Since, 10, 64)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid watch.since").
			WithDetail("since", w.Since)
	}
	return id, true, nil
}
