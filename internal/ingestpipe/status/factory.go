package status

import (
	"time"

	"manifold/internal/config"
)

// New builds a Registry from StatusConfig, following the teacher's
// factory-switch idiom (internal/persistence/databases/factory.go).
func New(cfg config.StatusConfig) (Registry, error) {
	maxAge := time.Duration(cfg.MaxAgeHours) * time.Hour
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	switch cfg.Backend {
	case "redis":
		return NewRedisRegistry(cfg.RedisAddr, maxAge)
	default:
		return NewMemoryRegistry(), nil
	}
}
