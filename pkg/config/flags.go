package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline, so --budget means the same
// thing on "lamdag reduce", "lamdag step" and "lamdag serve".
type Flag struct {
	// Name is the long flag name (e.g. "budget").
	Name string

	// Shorthand is the one-letter short flag (e.g. "b"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "engine.budget").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of registry keys to flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagBudget         = "budget"
	FlagMode           = "mode"
	FlagDetectCycles   = "detect-cycles"
	FlagAllowFree      = "allow-free"
	FlagMaxDepth       = "max-depth"
	FlagWorkers        = "workers"
	FlagQueueSize      = "queue-size"
	FlagStorageDriver  = "storage"
	FlagSQLite         = "sqlite"
	FlagPostgresDSN    = "postgres-dsn"
	FlagListen         = "listen"
	FlagEventsProvider = "events"
	FlagKafkaBrokers   = "kafka-brokers"
	FlagKafkaTopic     = "kafka-topic"
	FlagLogJSON        = "log-json"
	FlagLogPretty      = "pretty"
)

// Flags is the registry shared by every lamdag command.
var Flags = FlagSet{
	FlagBudget:         {Name: "budget", Shorthand: "b", ViperKey: "engine.budget", Description: "Step budget per run (0 = unbounded)"},
	FlagMode:           {Name: "mode", Shorthand: "m", ViperKey: "engine.mode", Description: "Reduction mode: head or deep"},
	FlagDetectCycles:   {Name: "detect-cycles", ViperKey: "engine.detect_cycles", Description: "Report a redex that re-enters itself as divergent"},
	FlagAllowFree:      {Name: "allow-free", ViperKey: "engine.allow_free", Description: "Treat unbound variables as free instead of failing"},
	FlagMaxDepth:       {Name: "max-depth", ViperKey: "engine.max_depth", Description: "Maximum nesting of pending reductions per run"},
	FlagWorkers:        {Name: "workers", Shorthand: "w", ViperKey: "workers.count", Description: "Number of reduction workers"},
	FlagQueueSize:      {Name: "queue-size", ViperKey: "workers.queue_size", Description: "Reduction job queue size"},
	FlagStorageDriver:  {Name: "storage", ViperKey: "storage.driver", Description: "Term storage: memory, sqlite or postgres"},
	FlagSQLite:         {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database"},
	FlagPostgresDSN:    {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagListen:         {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagEventsProvider: {Name: "events", ViperKey: "events.provider", Description: "Reduction event publisher: none or kafka"},
	FlagKafkaBrokers:   {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Kafka broker addresses"},
	FlagKafkaTopic:     {Name: "kafka-topic", ViperKey: "events.topic", Description: "Kafka topic for reduction events"},
	FlagLogJSON:        {Name: "log-json", ViperKey: "log.json", Description: "Write JSON logs"},
	FlagLogPretty:      {Name: "pretty", ViperKey: "log.pretty", Description: "Write colorized human-friendly logs"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddStringSliceFlag registers a comma-separated list flag on cmd.
func AddStringSliceFlag(cmd *cobra.Command, fs FlagSet, key string, target *[]string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetStringSlice(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringSliceVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringSliceVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
