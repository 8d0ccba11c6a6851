// Package validation performs fail-fast checks of the effective
// configuration before long-running services start.
package validation

import (
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"

	"tutorchat/pkg/config"
)

// ValidateConfig checks the effective configuration. Keep checks light
// and focused so callers can surface user-friendly errors.
func ValidateConfig(eff config.EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return fmt.Errorf("no configuration resolved")
	}

	switch cfg.Storage.Driver {
	case "", "pebble":
		if eff.DBPath == "" && cfg.Storage.DBPath == "" {
			return fmt.Errorf("database path is empty: set --db flag, TUTORCHAT_DB_PATH env, or storage.db_path in config")
		}
	case "supabase":
		if cfg.Storage.Supabase.URL == "" || cfg.Storage.Supabase.ServiceKey == "" {
			return fmt.Errorf("supabase storage requires storage.supabase.url and storage.supabase.service_key")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}

	switch cfg.Auth.Mode {
	case "", "supabase":
		if cfg.Storage.Supabase.URL == "" {
			return fmt.Errorf("supabase auth requires storage.supabase.url (or set auth.mode: insecure for local dev)")
		}
	case "insecure":
	default:
		return fmt.Errorf("unknown auth mode: %q", cfg.Auth.Mode)
	}

	switch cfg.Auth.Cache.Driver {
	case "", "memory", "none":
	case "redis":
		if cfg.Auth.Cache.RedisAddr == "" {
			return fmt.Errorf("redis auth cache requires auth.cache.redis_addr")
		}
	default:
		return fmt.Errorf("unknown auth cache driver: %q", cfg.Auth.Cache.Driver)
	}

	if cfg.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway base URL is empty: set TUTORCHAT_GATEWAY_URL or gateway.base_url in config")
	}

	// TLS cert/key presence check if one is set
	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if err := validateCatalog(cfg); err != nil {
		return err
	}

	if cfg.Retention.Enabled {
		if cfg.Retention.Cron != "" && !gronx.IsValid(cfg.Retention.Cron) {
			return fmt.Errorf("invalid retention cron expression: %s", cfg.Retention.Cron)
		}
		if cfg.Retention.Period != "" {
			d, err := time.ParseDuration(cfg.Retention.Period)
			if err != nil {
				return fmt.Errorf("invalid retention period: %w", err)
			}
			if d <= 0 {
				return fmt.Errorf("retention period must be positive: %s", cfg.Retention.Period)
			}
		}
	}

	return nil
}

// validateCatalog checks the model catalogue: at least one model, unique
// non-empty IDs.
func validateCatalog(cfg *config.Config) error {
	catalog := cfg.Catalog()
	if len(catalog) == 0 {
		return fmt.Errorf("model catalogue is empty")
	}
	seen := make(map[string]bool, len(catalog))
	for _, m := range catalog {
		if m.ID == "" {
			return fmt.Errorf("model catalogue entry with empty id")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate model id in catalogue: %s", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}
