package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EffectiveConfigResult is the merged view of flags, env and config file.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	// Source summarizes where values came from: "flags", "env", "config"
	// or a comma-joined combination.
	Source string
}

// ParseConfigFlags defines and parses command-line flags.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path (pebble driver only)")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and TUTORCHAT_CONFIG when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("TUTORCHAT_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvOverrides applies TUTORCHAT_* environment overrides onto cfg and
// reports whether any env var was used.
func LoadEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("TUTORCHAT_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("TUTORCHAT_ADDRESS"); host != "" {
			envUsed = true
			cfg.Server.Address = host
		}
		if port := os.Getenv("TUTORCHAT_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = pi
			}
		}
	}

	if v := os.Getenv("TUTORCHAT_STORAGE_DRIVER"); v != "" {
		envUsed = true
		cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("TUTORCHAT_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("TUTORCHAT_SUPABASE_URL"); v != "" {
		envUsed = true
		cfg.Storage.Supabase.URL = v
	}
	if v := os.Getenv("TUTORCHAT_SUPABASE_SERVICE_KEY"); v != "" {
		envUsed = true
		cfg.Storage.Supabase.ServiceKey = v
	}
	if v := os.Getenv("TUTORCHAT_GATEWAY_URL"); v != "" {
		envUsed = true
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("TUTORCHAT_GATEWAY_API_KEY"); v != "" {
		envUsed = true
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("TUTORCHAT_AUTH_MODE"); v != "" {
		envUsed = true
		cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("TUTORCHAT_AUTH_CACHE"); v != "" {
		envUsed = true
		cfg.Auth.Cache.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("TUTORCHAT_REDIS_ADDR"); v != "" {
		envUsed = true
		cfg.Auth.Cache.RedisAddr = v
	}
	if v := os.Getenv("TUTORCHAT_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("TUTORCHAT_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("TUTORCHAT_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("TUTORCHAT_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("TUTORCHAT_SYSTEM_PROMPT"); v != "" {
		envUsed = true
		cfg.Chat.SystemPrompt = v
	}
	if c := os.Getenv("TUTORCHAT_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("TUTORCHAT_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	return envUsed
}

// LoadEffective loads config from the given path and applies environment
// overrides, returning the effective config and whether env vars were used.
func LoadEffective(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	envUsed := LoadEnvOverrides(cfg)
	return cfg, envUsed, nil
}

// Effective merges flags, env and the config file into a single result.
// Flags win over env, env wins over file.
func Effective(flags Flags) (EffectiveConfigResult, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, envUsed, err := LoadEffective(cfgPath)
	if err != nil {
		return EffectiveConfigResult{}, err
	}

	addr := cfg.Addr()
	if flags.Set["addr"] {
		addr = flags.Addr
	}
	dbPath := cfg.Storage.DBPath
	if flags.Set["db"] || dbPath == "" {
		dbPath = flags.DB
	}

	srcs := []string{}
	if len(flags.Set) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}
	return EffectiveConfigResult{
		Config: cfg,
		Addr:   addr,
		DBPath: dbPath,
		Source: strings.Join(srcs, ", "),
	}, nil
}
