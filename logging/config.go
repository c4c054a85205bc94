package logging

import "github.com/grovetools/fsdispatch/config"

func init() {
	config.RegisterExtension("logging", &Config{})
}

// Config defines the structure for the logging section of fsdispatch.yml.
type Config struct {
	// Level is the minimum log level to output (e.g., "debug", "info", "warn", "error").
	// Can be overridden by the FSDISPATCH_LOG_LEVEL environment variable.
	Level string `yaml:"level" toml:"level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error,description=Minimum log level"`

	// ReportCaller, if true, includes the file, line, and function name in the log output.
	// Can be enabled with the FSDISPATCH_LOG_CALLER=true environment variable.
	ReportCaller bool `yaml:"report_caller" toml:"report_caller" jsonschema:"description=Include caller file and line in log output"`

	// File configures logging to a file.
	File FileSinkConfig `yaml:"file" toml:"file" jsonschema:"description=File sink"`

	// Format configures the appearance of the log output.
	Format FormatConfig `yaml:"format" toml:"format" jsonschema:"description=Output format"`
}

// FileSinkConfig configures the file logging sink.
type FileSinkConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// Path is the full path to the log file. Defaults to
	// ~/.local/state/fsdispatch/<component>.log when enabled without a path.
	Path   string `yaml:"path" toml:"path"`
	Format string `yaml:"format,omitempty" toml:"format,omitempty" jsonschema:"enum=text,enum=json"` // "text" (default) or "json"
}

// FormatConfig controls the log output format.
type FormatConfig struct {
	// Preset can be "default" (rich text), "simple" (minimal text), or "json".
	Preset string `yaml:"preset" toml:"preset" jsonschema:"enum=default,enum=simple,enum=json"`
	// DisableTimestamp disables the timestamp from the "default" and "simple" formats.
	DisableTimestamp bool `yaml:"disable_timestamp" toml:"disable_timestamp"`
	// DisableComponent disables the component name from the "default" and "simple" formats.
	DisableComponent bool `yaml:"disable_component" toml:"disable_component"`
	// StructuredToStderr controls when structured logs are sent to stderr.
	// Can be "auto" (default), "always", or "never".
	StructuredToStderr string `yaml:"structured_to_stderr" toml:"structured_to_stderr" jsonschema:"enum=auto,enum=always,enum=never"`
}
