package auth

import (
	"context"
	"fmt"

	"github.com/supabase-community/supabase-go"

	"tutorchat/pkg/config"
	"tutorchat/pkg/logger"
)

// GoTrueVerifier validates bearer tokens against the hosted Supabase auth
// service. Session issuance stays entirely with the collaborator; this
// process only checks tokens.
type GoTrueVerifier struct {
	client *supabase.Client
}

// NewGoTrueVerifier creates a verifier against the configured project.
func NewGoTrueVerifier(cfg config.SupabaseConfig) (*GoTrueVerifier, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required for auth mode supabase")
	}
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &GoTrueVerifier{client: client}, nil
}

func (v *GoTrueVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	user, err := v.client.Auth.WithToken(token).GetUser()
	if err != nil {
		logger.Debug("gotrue_verify_failed", "error", err)
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: user.ID.String(), Email: user.Email}, nil
}

// InsecureVerifier trusts the bearer token as the user id. Local
// development with the pebble driver only.
type InsecureVerifier struct{}

func (InsecureVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: token}, nil
}

// NewVerifier builds the configured verifier chain, including the identity
// cache when enabled.
func NewVerifier(cfg config.AuthConfig, supa config.SupabaseConfig) (Verifier, error) {
	var base Verifier
	switch cfg.Mode {
	case "", "supabase":
		v, err := NewGoTrueVerifier(supa)
		if err != nil {
			return nil, err
		}
		base = v
	case "insecure":
		logger.Warn("auth_mode_insecure", "note", "bearer tokens are trusted as user ids")
		base = InsecureVerifier{}
	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.Mode)
	}
	return newCachingVerifier(base, cfg.Cache)
}
