package cli

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataframehub/internal/config"
	"dataframehub/internal/middleware"
)

func TestServe_GracefulShutdown(t *testing.T) {
	dir := testEnv(t)
	importUsers(t, dir)
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	a := &app{cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/api/datasets/acme/users")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestServeCmd_InvalidPruneSchedule(t *testing.T) {
	testEnv(t)
	t.Setenv("LISTEN_ADDR", "127.0.0.1:0")
	t.Setenv("HISTORY_PRUNE_SCHEDULE", "whenever")

	res := runCLI(t, "", "serve")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid prune schedule")
}

func TestTokenValidator(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want interface{}
	}{
		{"disabled", config.Config{}, nil},
		{"shared_secret", config.Config{JWTSecret: "secret"}, &middleware.HS256Validator{}},
		{"oidc_jwks", config.Config{OIDCIssuerURL: "https://issuer.example.com", OIDCJWKSURL: "https://issuer.example.com/keys"}, &middleware.OIDCValidator{}},
		{"oidc_wins", config.Config{JWTSecret: "secret", OIDCIssuerURL: "https://issuer.example.com", OIDCJWKSURL: "https://issuer.example.com/keys"}, &middleware.OIDCValidator{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tokenValidator(context.Background(), &tt.cfg)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, v)
				return
			}
			assert.IsType(t, tt.want, v)
		})
	}
}
