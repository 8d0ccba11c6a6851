package banner

import (
	"fmt"

	"tutorchat/pkg/config"
)

const banner = `
████████╗██╗   ██╗████████╗ ██████╗ ██████╗  ██████╗██╗  ██╗ █████╗ ████████╗
╚══██╔══╝██║   ██║╚══██╔══╝██╔═══██╗██╔══██╗██╔════╝██║  ██║██╔══██╗╚══██╔══╝
   ██║   ██║   ██║   ██║   ██║   ██║██████╔╝██║     ███████║███████║   ██║
   ██║   ██║   ██║   ██║   ██║   ██║██╔══██╗██║     ██╔══██║██╔══██║   ██║
   ██║   ╚██████╔╝   ██║   ╚██████╔╝██║  ██║╚██████╗██║  ██║██║  ██║   ██║
   ╚═╝    ╚═════╝    ╚═╝    ╚═════╝ ╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`

// PrintWithEff prints the startup banner with the effective runtime
// configuration.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	cfg := eff.Config
	addr := eff.Addr
	if addr == "" && cfg != nil {
		addr = cfg.Addr()
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)
	if cfg != nil {
		driver := cfg.Storage.Driver
		if driver == "" {
			driver = "pebble"
		}
		fmt.Printf("Storage:  %s\n", driver)
		if driver == "pebble" {
			fmt.Printf("DB Path:  %s\n", eff.DBPath)
		}
		mode := cfg.Auth.Mode
		if mode == "" {
			mode = "supabase"
		}
		fmt.Printf("Auth:     %s\n", mode)
		fmt.Printf("Gateway:  %s\n", cfg.Gateway.BaseURL)
		fmt.Printf("Models:   %d configured\n", len(cfg.Catalog()))
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/chat    - Submit an utterance, streams the reply (SSE)")
	fmt.Println("POST /v1/history - Load the conversation for a model (JSON)")
	fmt.Println("POST /v1/clear   - Delete the conversation's turns (JSON)")
	fmt.Println("GET  /v1/models  - List the model catalogue (JSON)")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -N -X POST 'http://localhost%s/v1/chat' -H 'Authorization: Bearer <token>' -d '{\"model_id\":\"mistral/mistral-small\",\"input\":\"hello\"}'\n", addr)
	fmt.Printf("curl -X POST 'http://localhost%s/v1/history' -H 'Authorization: Bearer <token>' -d '{\"model_id\":\"mistral/mistral-small\"}'\n", addr)

	fmt.Println("\n== Production? ================================================")
	if cfg != nil {
		if cfg.Auth.Mode == "insecure" {
			fmt.Println("- Auth: INSECURE mode (tokens trusted as user ids; dev only)")
		} else {
			fmt.Println("- Auth: supabase token verification")
		}
		if cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
			fmt.Println("- TLS: configured")
		} else {
			fmt.Println("- TLS: unconfigured")
		}
		if cfg.Gateway.APIKey == "" {
			fmt.Println("- Gateway API key: MISSING (inference calls will be rejected)")
		} else {
			fmt.Println("- Gateway API key: OK")
		}
		if cfg.Retention.Enabled {
			if cfg.Retention.Cron != "" {
				fmt.Printf("- Retention: enabled (cron=%s)\n", cfg.Retention.Cron)
			} else {
				fmt.Println("- Retention: enabled")
			}
		} else {
			fmt.Println("- Retention: disabled")
		}
	}

	fmt.Println("\n== Logs: ======================================================")
}
