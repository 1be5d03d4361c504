// Package identity derives a ClientIdentity (client_id, group, auth token)
// from an incoming request per the configured extraction policy, and
// validates bearer JWTs against polled JWKs when OAuth2 is configured.
//
// Grounded on curaious-uno's internal/api/authenticator (oidc.Provider +
// auth0/go-jwt-middleware validator/jwks), generalized from "gate or don't"
// into "extract (client_id, group) from whichever claims/headers policy
// names".
package identity

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"github.com/grafbase/nexus/internal/config"
)

// ClientIdentity is the (client_id, group) subject of per-user rate limits
// and ACLs, plus the caller's own bearer token for auth-forwarding.
type ClientIdentity struct {
	ClientID  string
	Group     string
	AuthToken []byte
}

// HasClientID reports whether a client_id was resolved. Per the spec, its
// absence disables any rate limit that requires a client identity.
func (c ClientIdentity) HasClientID() bool { return c.ClientID != "" }

// Extractor derives a ClientIdentity from request headers and (if present)
// validated JWT claims.
type Extractor struct {
	cfg          config.IdentityConfig
	jwtValidator *validator.Validator
}

// HeaderGetter abstracts the concrete HTTP request type (fasthttp vs
// net/http) so Extractor stays transport-agnostic.
type HeaderGetter interface {
	Header(name string) string
}

// customClaims carries whatever custom claims the issuer put on the token;
// go-jwt-middleware decodes into this via its CustomClaims hook.
type customClaims map[string]any

func (c *customClaims) Validate(context.Context) error { return nil }

func NewExtractor(_ context.Context, cfg config.IdentityConfig) (*Extractor, error) {
	e := &Extractor{cfg: cfg}

	if cfg.Issuer == "" {
		// OAuth2 validation disabled; no token is validated, so with
		// Source == "jwt" there are no claims and the identity stays empty.
		return e, nil
	}

	if cfg.JWKsURL == "" {
		return nil, errors.New("identity.jwks_url is required when identity.issuer is set")
	}

	issuerURL, err := url.Parse(cfg.JWKsURL)
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	v, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		cfg.Issuer,
		cfg.Audience,
		validator.WithCustomClaims(func() validator.CustomClaims {
			c := customClaims{}
			return &c
		}),
	)
	if err != nil {
		return nil, err
	}
	e.jwtValidator = v

	return e, nil
}

// ValidateAndExtract validates the bearer token (if OAuth2 is configured)
// and extracts (client_id, group) per the configured policy. bearer may be
// empty when no Authorization header was present.
func (e *Extractor) ValidateAndExtract(ctx context.Context, bearer string, headers HeaderGetter) (ClientIdentity, error) {
	var claims map[string]any

	if e.jwtValidator != nil {
		if bearer == "" {
			return ClientIdentity{}, errors.New("missing bearer token")
		}
		validated, err := e.jwtValidator.ValidateToken(ctx, bearer)
		if err != nil {
			return ClientIdentity{}, err
		}
		if c, ok := validated.(*validator.ValidatedClaims); ok {
			claims = map[string]any{"sub": c.RegisteredClaims.Subject}
			if custom, ok := c.CustomClaims.(*customClaims); ok && custom != nil {
				for k, v := range *custom {
					claims[k] = v
				}
			}
		}
	}

	ident := ClientIdentity{}
	if bearer != "" {
		ident.AuthToken = []byte(bearer)
	}

	switch e.cfg.Source {
	case "jwt":
		if claims != nil {
			if v, ok := claims[orDefault(e.cfg.ClientIDClaim, "sub")].(string); ok {
				ident.ClientID = v
			}
			if v, ok := claims[orDefault(e.cfg.GroupClaim, "group")].(string); ok {
				ident.Group = v
			}
		}
	default: // "header"
		ident.ClientID = headers.Header(orDefault(e.cfg.ClientIDHeader, "X-Client-ID"))
		ident.Group = headers.Header(orDefault(e.cfg.GroupHeader, "X-Client-Group"))
	}

	return ident, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ClientIP resolves the caller's address honoring x_forwarded_for_trusted_hops:
// trusted intermediary hops (load balancers, reverse proxies) are stripped
// from the right of the X-Forwarded-For chain and the rightmost remaining
// address is taken as the real client IP; when trustedHops is zero or less,
// or covers the whole chain, the leftmost address is taken. realIP (X-Real-Ip) takes priority
// when present, matching common reverse-proxy conventions.
func ClientIP(realIP, forwardedFor, remoteAddr string, trustedHops int) string {
	if realIP != "" {
		return realIP
	}

	if forwardedFor == "" {
		return remoteAddr
	}

	hops := splitCommaList(forwardedFor)
	if trustedHops <= 0 || trustedHops >= len(hops) {
		return hops[0]
	}

	return hops[len(hops)-1-trustedHops]
}

func splitCommaList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			part := trimSpace(s[start:i])
			if part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		out = []string{s}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
