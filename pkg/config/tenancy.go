package config

import (
	"strings"
	"time"
)

// TenancyConfig configures host-based tenant resolution.
type TenancyConfig struct {
	// SuperAdminPrefix is the leftmost host label reserved for the platform console, e.g. "admin"
	SuperAdminPrefix string
	CacheTTL         time.Duration
	CacheCapacity    uint64
	// WatchChanges listens for tenant_changed notifications and drops the
	// changed domains from the cache
	WatchChanges bool
}

func loadTenancyConfig() TenancyConfig {
	return TenancyConfig{
		SuperAdminPrefix: strings.ToLower(getEnv("TENANCY_SUPERADMIN_PREFIX", "admin")),
		CacheTTL:         getEnvDuration("TENANCY_CACHE_TTL", time.Minute),
		CacheCapacity:    uint64(getEnvInt("TENANCY_CACHE_CAPACITY", 10000)),
		WatchChanges:     getEnvBool("TENANCY_WATCH_CHANGES", true),
	}
}

func (t TenancyConfig) Validate() error {
	if t.SuperAdminPrefix == "" {
		return missing("TENANCY_SUPERADMIN_PREFIX")
	}
	if strings.Contains(t.SuperAdminPrefix, ".") {
		return invalid("TENANCY_SUPERADMIN_PREFIX", t.SuperAdminPrefix)
	}
	return nil
}
