package engine

import (
	"log/slog"

	"github.com/openlift/syncengine/logging"
	"github.com/openlift/syncengine/queue"
)

// Persisted state keys used in the key-value store.
const (
	DefaultQueueKey    = "sync:queue"
	DefaultMappingsKey = "sync:idmap"
)

// Config tunes an Engine. The zero value selects sensible defaults.
type Config struct {
	// MaxRetries is the per-item retry threshold after which a queue item
	// is quarantined. Defaults to queue.DefaultMaxRetries.
	MaxRetries int

	// QueueKey and MappingsKey are the key-value store keys holding the
	// persisted queue and identifier mappings.
	QueueKey    string
	MappingsKey string

	// Logger receives the engine's structured log output. Defaults to the
	// process-wide default logger.
	Logger *slog.Logger

	// Metrics receives observability hooks. Defaults to a no-op collector.
	Metrics MetricsCollector
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = queue.DefaultMaxRetries
	}
	if c.QueueKey == "" {
		c.QueueKey = DefaultQueueKey
	}
	if c.MappingsKey == "" {
		c.MappingsKey = DefaultMappingsKey
	}
	if c.Logger == nil {
		c.Logger = logging.Default().Logger
	}
	if c.Metrics == nil {
		c.Metrics = &NoOpMetricsCollector{}
	}
	return c
}
