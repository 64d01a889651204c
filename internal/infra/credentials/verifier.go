package credentials

import (
	"errors"
	"strings"

	"server/internal/middleware"
)

// NewStaticVerifier parses a "token=owner,token=owner" list (the
// API_AUTH_TOKENS variable) into a middleware.TokenVerifier. The real
// identity provider lives outside this service; this covers development
// and machine-to-machine deployments with pre-issued tokens.
func NewStaticVerifier(pairs string) middleware.TokenVerifier {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(pairs, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, owner, ok := strings.Cut(pair, "=")
		if !ok || token == "" || owner == "" {
			continue
		}
		tokens[token] = owner
	}
	return func(token string) (string, error) {
		owner, ok := tokens[token]
		if !ok {
			return "", errors.New("unknown token")
		}
		return owner, nil
	}
}
