package app

import (
	"strings"

	"remindbot/internal/config"
	"remindbot/internal/storage"
)

// mapStorageConfig converts the storage section. enabled is false when the
// section is missing or the driver is "none".
func mapStorageConfig(cfg *config.Config) (sc storage.Config, enabled bool, err error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	s := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := cfg.StorageBusyTimeout()
	if err != nil {
		return storage.Config{}, false, err
	}
	sc = storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(s.Path),
		BusyTimeout: busy,
	}
	if r := s.Redis; r != nil {
		sc.Redis = storage.RedisConfig{
			Addr:     strings.TrimSpace(r.Addr),
			Password: r.Password,
			DB:       r.DB,
			Key:      strings.TrimSpace(r.Key),
			MaxLen:   r.MaxLen,
		}
	}
	return sc, true, nil
}
