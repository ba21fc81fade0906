package settings

import (
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/exp/slog"

	"go-crash/internal/config"
	"go-crash/internal/lib/logger/sl"
)

const cacheKey = "crash_settings"

type Store interface {
	GetCrashSettings() (config.CrashSettings, error)
}

// Provider serves game settings through a short TTL cache, so admin edits to
// the settings row apply within seconds and without a restart.
type Provider struct {
	store Store
	cache *cache.Cache
	log   *slog.Logger
}

func NewProvider(store Store, log *slog.Logger) *Provider {
	return &Provider{
		store: store,
		cache: cache.New(5*time.Second, 10*time.Minute),
		log:   log,
	}
}

func (p *Provider) Crash() config.CrashSettings {
	if cached, found := p.cache.Get(cacheKey); found {
		return cached.(config.CrashSettings)
	}

	s, err := p.store.GetCrashSettings()
	if err != nil {
		p.log.Error("failed to load crash settings, using defaults", sl.Err(err))

		return config.DefaultCrashSettings
	}

	p.cache.Set(cacheKey, s, cache.DefaultExpiration)

	return s
}
