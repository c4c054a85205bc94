package config

// mergeConfigs merges override configuration into base. Scalars replace when
// set, lists replace when present, and extension sections merge one level
// deep.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	result.Watch = mergeWatch(result.Watch, override.Watch)
	result.Queue = mergeQueue(result.Queue, override.Queue)

	if override.Extensions != nil {
		merged := make(map[string]interface{}, len(result.Extensions)+len(override.Extensions))
		for key, value := range result.Extensions {
			merged[key] = value
		}
		for key, value := range override.Extensions {
			if baseMap, ok := merged[key].(map[string]interface{}); ok {
				if overrideMap, ok := value.(map[string]interface{}); ok {
					m := make(map[string]interface{}, len(baseMap)+len(overrideMap))
					for k, v := range baseMap {
						m[k] = v
					}
					for k, v := range overrideMap {
						m[k] = v
					}
					merged[key] = m
					continue
				}
			}
			merged[key] = value
		}
		result.Extensions = merged
	}

	return &result
}

func mergeWatch(base, override WatchConfig) WatchConfig {
	result := base

	if override.Paths != nil {
		result.Paths = override.Paths
	}
	if override.Latency != "" {
		result.Latency = override.Latency
	}
	if override.Since != "" {
		result.Since = override.Since
	}
	if override.Flags != nil {
		result.Flags = override.Flags
	}
	if override.Exclude != nil {
		result.Exclude = override.Exclude
	}
	if override.Ignore != nil {
		result.Ignore = override.Ignore
	}

	return result
}

func mergeQueue(base, override QueueConfig) QueueConfig {
	result := base

	if override.Label != "" {
		result.Label = override.Label
	}
	if override.Attr != "" {
		result.Attr = override.Attr
	}
	if override.Priority != "" {
		result.Priority = override.Priority
	}

	return result
}

// OverrideSource is one override file and what it contained.
type OverrideSource struct {
	Path   string  `yaml:"path"`
	Config *Config `yaml:"config"`
}

// LayeredConfig keeps every configuration layer next to the merged result.
type LayeredConfig struct {
	Default   *Config                 `yaml:"default"`
	Global    *Config                 `yaml:"global,omitempty"`
	Project   *Config                 `yaml:"project,omitempty"`
	Overrides []OverrideSource        `yaml:"overrides,omitempty"`
	Final     *Config                 `yaml:"final"`
	FilePaths map[ConfigSource]string `yaml:"file_paths"`
}
