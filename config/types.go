package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Config represents the fsdispatch.yml configuration
type Config struct {
	Version string      `yaml:"version" toml:"version" jsonschema:"description=Configuration version (e.g. 1.0)"`
	Watch   WatchConfig `yaml:"watch,omitempty" toml:"watch,omitempty" jsonschema:"description=Event stream settings used by fsdispatch watch"`
	Queue   QueueConfig `yaml:"queue,omitempty" toml:"queue,omitempty" jsonschema:"description=Dispatch queue the stream callback runs on"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// WatchConfig describes the event stream to open.
type WatchConfig struct {
	Paths   []string `yaml:"paths,omitempty" toml:"paths,omitempty" jsonschema:"description=Directories to watch"`
	Latency string   `yaml:"latency,omitempty" toml:"latency,omitempty" jsonschema:"description=Coalescing window as a Go duration (e.g. 250ms)"`
	Since   string   `yaml:"since,omitempty" toml:"since,omitempty" jsonschema:"description=Where to start: now or start or an event id,pattern=^(now|start|[0-9]+)$"`
	Flags   []string `yaml:"flags,omitempty" toml:"flags,omitempty" jsonschema:"description=Stream creation flags (e.g. file_events or watch_root)"`
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude,omitempty" jsonschema:"description=Directories whose events are dropped,maxItems=8"`
	Ignore  []string `yaml:"ignore,omitempty" toml:"ignore,omitempty" jsonschema:"description=Glob patterns of paths to filter out of every batch"`
}

// QueueConfig selects the queue deliveries run on. A non-empty Priority
// selects the shared global queue of that priority; otherwise a private
// queue named Label is created.
type QueueConfig struct {
	Label    string `yaml:"label,omitempty" toml:"label,omitempty" jsonschema:"description=Label of the private queue"`
	Attr     string `yaml:"attr,omitempty" toml:"attr,omitempty" jsonschema:"enum=serial,enum=concurrent,description=Private queue kind"`
	Priority string `yaml:"priority,omitempty" toml:"priority,omitempty" jsonschema:"enum=high,enum=default,enum=low,enum=background,description=Use the global queue of this priority"`
}

const (
	DefaultVersion    = "1.0"
	DefaultLatency    = "100ms"
	DefaultSince      = "now"
	DefaultQueueLabel = "com.grovetools.fsdispatch.watch"
	DefaultQueueAttr  = "serial"
)

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Watch.Latency == "" {
		c.Watch.Latency = DefaultLatency
	}
	if c.Watch.Since == "" {
		c.Watch.Since = DefaultSince
	}
	if c.Watch.Flags == nil {
		c.Watch.Flags = []string{"file_events"}
	}
	if c.Queue.Label == "" {
		c.Queue.Label = DefaultQueueLabel
	}
	if c.Queue.Attr == "" {
		c.Queue.Attr = DefaultQueueAttr
	}
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded fsdispatch.yml into the provided target struct. The target must be a
// pointer. A missing key leaves the target untouched.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	// Decode with `yaml` tags so extension structs need only one set of tags.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}

var (
	extensions   = make(map[string]interface{})
	extensionsMu sync.RWMutex
)

// RegisterExtension declares the shape of an extension section. proto is a
// pointer to the struct UnmarshalExtension will decode into; it is reflected
// into the generated schema so the section is validated on load.
func RegisterExtension(key string, proto interface{}) {
	extensionsMu.Lock()
	defer extensionsMu.Unlock()
	extensions[key] = proto
}

// registeredExtensions returns the registered keys in sorted order with their
// prototypes.
func registeredExtensions() ([]string, map[string]interface{}) {
	extensionsMu.RLock()
	defer extensionsMu.RUnlock()
	keys := make([]string, 0, len(extensions))
	protos := make(map[string]interface{}, len(extensions))
	for k, v := range extensions {
		keys = append(keys, k)
		protos[k] = v
	}
	sort.Strings(keys)
	return keys, protos
}

// ConfigSource identifies where a configuration layer came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceGlobal   ConfigSource = "global"
	SourceProject  ConfigSource = "project"
	SourceOverride ConfigSource = "override"
)
