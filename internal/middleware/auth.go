// Package middleware provides the HTTP middleware of the query service:
// tenant authentication, request IDs and access logging, and rate limiting.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"

	"dataframehub/internal/domain"
)

// OrganizationsClaim is the JWT claim listing the organizations a token may
// query. It holds a string or an array of strings; "*" grants every organization.
const OrganizationsClaim = "orgs"

// TokenValidator validates a bearer token and returns the principal it names.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (domain.ContextPrincipal, error)
}

// HS256Validator validates JWTs signed with a shared secret.
type HS256Validator struct {
	secret []byte
}

// NewHS256Validator creates a validator for tokens signed with secret.
func NewHS256Validator(secret string) (*HS256Validator, error) {
	if secret == "" {
		return nil, errors.New("JWT secret is required")
	}
	return &HS256Validator{secret: []byte(secret)}, nil
}

// Validate verifies the signature and expiry of token and extracts the
// subject and organization claims.
func (v *HS256Validator) Validate(_ context.Context, token string) (domain.ContextPrincipal, error) {
	tok, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.ContextPrincipal{}, fmt.Errorf("token verification failed: %w", err)
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return domain.ContextPrincipal{}, fmt.Errorf("parse claims: unsupported claim type %T", tok.Claims)
	}
	return principalFromClaims(claims)
}

// principalFromClaims builds a principal from the "sub" and OrganizationsClaim claims.
func principalFromClaims(claims map[string]interface{}) (domain.ContextPrincipal, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return domain.ContextPrincipal{}, errors.New("token has no subject")
	}

	p := domain.ContextPrincipal{Name: sub}
	switch orgs := claims[OrganizationsClaim].(type) {
	case string:
		p.Organizations = []string{orgs}
	case []interface{}:
		for _, o := range orgs {
			if s, ok := o.(string); ok && s != "" {
				p.Organizations = append(p.Organizations, s)
			}
		}
	}
	if len(p.Organizations) == 0 {
		return domain.ContextPrincipal{}, fmt.Errorf("token for %q grants no organizations", sub)
	}
	return p, nil
}

// OIDCValidator validates JWTs issued by an OpenID Connect provider.
type OIDCValidator struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCValidator creates a validator using OIDC discovery on issuerURL.
func NewOIDCValidator(ctx context.Context, issuerURL, audience string) (*OIDCValidator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}
	return &OIDCValidator{verifier: provider.Verifier(&oidc.Config{ClientID: audience})}, nil
}

// NewOIDCValidatorFromJWKS creates a validator from a JWKS URL without discovery.
func NewOIDCValidatorFromJWKS(ctx context.Context, jwksURL, issuerURL, audience string) *OIDCValidator {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	return &OIDCValidator{verifier: oidc.NewVerifier(issuerURL, keySet, &oidc.Config{ClientID: audience})}
}

// Validate verifies token against the provider's keys and extracts the principal.
func (v *OIDCValidator) Validate(ctx context.Context, token string) (domain.ContextPrincipal, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return domain.ContextPrincipal{}, fmt.Errorf("token verification failed: %w", err)
	}
	var raw map[string]interface{}
	if err := idToken.Claims(&raw); err != nil {
		return domain.ContextPrincipal{}, fmt.Errorf("parse claims: %w", err)
	}
	return principalFromClaims(raw)
}

// Authenticate rejects requests without a valid bearer token with 401 and
// stores the token's principal in the request context.
func Authenticate(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "unauthorized: provide a valid JWT Bearer token")
				return
			}

			p, err := v.Validate(r.Context(), token)
			if err != nil {
				writeUnauthorized(w, "unauthorized: "+err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(domain.WithPrincipal(r.Context(), p)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    http.StatusUnauthorized,
		"message": message,
	})
}
