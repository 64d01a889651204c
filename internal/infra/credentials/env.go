package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"server/internal/domain"
)

// EnvTokenProvider resolves publish credentials from environment variables
// of the form {PLATFORM}_ACCESS_TOKEN and {PLATFORM}_ACCOUNT_ID. It stands
// in for the OAuth integration layer in development and single-tenant
// deployments; tokens are read per call and never cached.
type EnvTokenProvider struct {
	platforms []string
}

// NewEnvTokenProvider watches the given platform names.
func NewEnvTokenProvider(platforms ...string) *EnvTokenProvider {
	return &EnvTokenProvider{platforms: platforms}
}

// Credentials returns the platform's token material or domain.ErrNoCredentials.
func (p *EnvTokenProvider) Credentials(_ context.Context, _ string, platform string) (*domain.PlatformCredentials, error) {
	prefix := strings.ToUpper(platform)
	token := strings.TrimSpace(os.Getenv(prefix + "_ACCESS_TOKEN"))
	if token == "" {
		return nil, fmt.Errorf("%s: %w", platform, domain.ErrNoCredentials)
	}
	return &domain.PlatformCredentials{
		AccessToken: token,
		AccountID:   strings.TrimSpace(os.Getenv(prefix + "_ACCOUNT_ID")),
	}, nil
}

// Connected reports the platforms with a configured access token.
func (p *EnvTokenProvider) Connected(_ context.Context, _ string) (map[string]bool, error) {
	connected := make(map[string]bool, len(p.platforms))
	for _, platform := range p.platforms {
		token := os.Getenv(strings.ToUpper(platform) + "_ACCESS_TOKEN")
		connected[platform] = strings.TrimSpace(token) != ""
	}
	return connected, nil
}

var _ domain.TokenProvider = (*EnvTokenProvider)(nil)
