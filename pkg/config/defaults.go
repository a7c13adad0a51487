package config

const (
	defaultMode      = "head"
	defaultMaxDepth  = 100_000
	defaultAPIListen = ":8181"

	defaultWorkers   = 4
	defaultQueueSize = 256

	defaultStorageDriver = "memory"

	defaultEventsProvider = "none"
	defaultEventsTopic    = "lamdag.reductions"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Engine: EngineConfig{
			Mode:         defaultMode,
			DetectCycles: true,
			AllowFree:    true,
			MaxDepth:     defaultMaxDepth,
		},
		Workers: WorkersConfig{
			Count:     defaultWorkers,
			QueueSize: defaultQueueSize,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
