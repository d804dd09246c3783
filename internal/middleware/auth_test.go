package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataframehub/internal/domain"
)

const testSecret = "test-secret-32-bytes-long-xxxxx"

// makeToken creates a signed HS256 JWT from the given secret and claims.
func makeToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestNewHS256Validator_RequiresSecret(t *testing.T) {
	_, err := NewHS256Validator("")
	require.Error(t, err)
}

func TestHS256Validator_Validate(t *testing.T) {
	v, err := NewHS256Validator(testSecret)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    domain.ContextPrincipal
		wantErr string
	}{
		{
			name:  "single_organization",
			token: makeToken(t, testSecret, jwt.MapClaims{"sub": "alice", "orgs": "acme"}),
			want:  domain.ContextPrincipal{Name: "alice", Organizations: []string{"acme"}},
		},
		{
			name:  "organization_list",
			token: makeToken(t, testSecret, jwt.MapClaims{"sub": "ops", "orgs": []string{"acme", "*"}}),
			want:  domain.ContextPrincipal{Name: "ops", Organizations: []string{"acme", "*"}},
		},
		{
			name:    "wrong_secret",
			token:   makeToken(t, "another-secret", jwt.MapClaims{"sub": "alice", "orgs": "acme"}),
			wantErr: "token verification failed",
		},
		{
			name:    "expired",
			token:   makeToken(t, testSecret, jwt.MapClaims{"sub": "alice", "orgs": "acme", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantErr: "token verification failed",
		},
		{
			name:    "missing_subject",
			token:   makeToken(t, testSecret, jwt.MapClaims{"orgs": "acme"}),
			wantErr: "no subject",
		},
		{
			name:    "missing_organizations",
			token:   makeToken(t, testSecret, jwt.MapClaims{"sub": "alice"}),
			wantErr: "grants no organizations",
		},
		{
			name:    "garbage",
			token:   "not.a.jwt",
			wantErr: "token verification failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate(context.Background(), tt.token)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	v, err := NewHS256Validator(testSecret)
	require.NoError(t, err)

	var seen domain.ContextPrincipal
	handler := Authenticate(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = domain.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid", header: "Bearer " + makeToken(t, testSecret, jwt.MapClaims{"sub": "alice", "orgs": "acme"}), wantStatus: http.StatusNoContent},
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Basic YWxpY2U6cHc=", wantStatus: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = domain.ContextPrincipal{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, "alice", seen.Name)
				assert.True(t, seen.CanAccess("acme"))
				return
			}
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.InDelta(t, float64(401), body["code"], 0.001)
			assert.Empty(t, seen.Name)
		})
	}
}

func TestOIDCValidator_RejectsUnverifiableToken(t *testing.T) {
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[]}`))
	}))
	t.Cleanup(jwks.Close)

	v := NewOIDCValidatorFromJWKS(context.Background(), jwks.URL, "https://issuer.example.com", "dataframehub")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"hs256_token", makeToken(t, testSecret, jwt.MapClaims{
			"iss": "https://issuer.example.com", "aud": "dataframehub", "sub": "alice",
			OrganizationsClaim: "acme", "exp": time.Now().Add(time.Hour).Unix(),
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tt.token)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "token verification failed")
		})
	}
}

func TestPrincipalFromClaims(t *testing.T) {
	tests := []struct {
		name    string
		claims  map[string]interface{}
		want    []string
		wantErr bool
	}{
		{"string_org", map[string]interface{}{"sub": "alice", OrganizationsClaim: "acme"}, []string{"acme"}, false},
		{"array_orgs", map[string]interface{}{"sub": "alice", OrganizationsClaim: []interface{}{"acme", "", 3, "globex"}}, []string{"acme", "globex"}, false},
		{"no_subject", map[string]interface{}{OrganizationsClaim: "acme"}, nil, true},
		{"no_orgs", map[string]interface{}{"sub": "alice"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := principalFromClaims(tt.claims)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", p.Name)
			assert.Equal(t, tt.want, p.Organizations)
		})
	}
}
