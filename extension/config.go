package extension

import "github.com/xraph/keeper"

// Config holds the keeper extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.keeper" or "keeper" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is an optional URL prefix for keeper routes (e.g. "/keeper").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// DisableMetrics skips the Prometheus metrics plugin.
	DisableMetrics bool `json:"disable_metrics" mapstructure:"disable_metrics" yaml:"disable_metrics"`

	// MetricsPath mounts the Prometheus scrape handler at this path, below
	// BasePath (e.g. "/metrics"). Empty leaves it unmounted; MetricsHandler
	// is always available for mounting elsewhere.
	MetricsPath string `json:"metrics_path" mapstructure:"metrics_path" yaml:"metrics_path"`

	// DisableCache skips the default in-memory snapshot cache.
	DisableCache bool `json:"disable_cache" mapstructure:"disable_cache" yaml:"disable_cache"`

	// AuthorizeWrites requires manageChannels for role and rule writes.
	AuthorizeWrites bool `json:"authorize_writes" mapstructure:"authorize_writes" yaml:"authorize_writes"`

	// PurgeSchedule is the cron expression of the audit retention job
	// (default: "@daily"). Set to "-" to disable the job.
	PurgeSchedule string `json:"purge_schedule" mapstructure:"purge_schedule" yaml:"purge_schedule"`

	// Engine configures the keeper engine itself.
	Engine keeper.Config `json:"engine" mapstructure:"engine" yaml:"engine"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PurgeSchedule: "@daily",
		Engine:        keeper.DefaultConfig(),
	}
}

// metricsRoute reports where the scrape handler is mounted, if anywhere.
func (c Config) metricsRoute() (string, bool) {
	if c.DisableMetrics || c.MetricsPath == "" {
		return "", false
	}
	return c.MetricsPath, true
}

func (c Config) purgeEnabled() bool { return c.PurgeSchedule != "-" }

func (c Config) purgeSchedule() string {
	if c.PurgeSchedule == "" {
		return "@daily"
	}
	return c.PurgeSchedule
}
