package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/fetchguard/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckCmd(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		decision string
		rule     string
	}{
		{"no fetch metadata", []string{"--method", "POST", "--path", "/transfer"}, "allow", "no-fetch-metadata"},
		{"same origin", []string{"--method", "POST", "--site", "same-origin"}, "allow", "trusted-site"},
		{"same site allowed by default", []string{"--site", "same-site", "--mode", "cors"}, "allow", "trusted-site"},
		{"same site enforced", []string{"--site", "same-site", "--mode", "cors", "--enforce-same-site"}, "block", "default-deny"},
		{"cross-site navigation", []string{"--site", "cross-site", "--mode", "navigate", "--dest", "document"}, "allow", "navigation"},
		{"cross-site post navigation", []string{"--method", "post", "--site", "cross-site", "--mode", "navigate", "--dest", "document"}, "block", "default-deny"},
		{"cross-site asset", []string{"--path", "/assets/app.js", "--site", "cross-site", "--mode", "no-cors", "--asset-prefix", "/assets/"}, "allow", "asset"},
		{"cross-site api", []string{"--method", "POST", "--path", "/transfer", "--site", "cross-site", "--mode", "cors", "--dest", "empty"}, "block", "default-deny"},
		{"empty site header is present", []string{"--site", ""}, "block", "default-deny"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"check"}, tt.args...)...)
			require.NoError(t, err)
			assert.Contains(t, out, "decision: "+tt.decision)
			assert.Contains(t, out, "rule:     "+tt.rule)
			assert.Contains(t, out, "source:   flags")
		})
	}
}

func TestCheckCmd_ExitCode(t *testing.T) {
	_, err := execute(t, "check", "--method", "POST", "--site", "cross-site", "--exit-code")
	assert.ErrorIs(t, err, ErrBlocked)

	_, err = execute(t, "check", "--site", "same-origin", "--exit-code")
	assert.NoError(t, err)
}

func TestCheckCmd_PolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default:
  report_only: false
routes:
  - pattern: /webhooks/**
    disabled: true
  - pattern: /beta/**
    report_only: true
`), 0o600))

	t.Run("route disabled", func(t *testing.T) {
		out, err := execute(t, "check", "--policy", path, "--method", "POST", "--path", "/webhooks/stripe", "--site", "cross-site")
		require.NoError(t, err)
		assert.Contains(t, out, "rule:     no-policy")
		assert.Contains(t, out, "source:   "+path)
	})

	t.Run("report only route", func(t *testing.T) {
		out, err := execute(t, "check", "--policy", path, "--method", "POST", "--path", "/beta/x", "--site", "cross-site", "--exit-code")
		require.NoError(t, err)
		assert.Contains(t, out, "decision: block")
		assert.Contains(t, out, "report-only")
	})

	t.Run("invalid file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("default:\n  asset_path_prefix: nope\n"), 0o600))

		_, err := execute(t, "check", "--policy", bad)
		assert.Error(t, err)
	})
}

func TestTokenCmd(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"

	t.Run("issues a verifiable token", func(t *testing.T) {
		t.Setenv("ADMIN_JWT_SECRET", secret)

		out, err := execute(t, "token", "--subject", "ops", "--ttl", "5m")
		require.NoError(t, err)

		validator, err := auth.NewHMACValidator(auth.Config{Secret: secret, Issuer: "fetchguard"})
		require.NoError(t, err)
		claims, err := validator.ValidateToken(context.Background(), strings.TrimSpace(out))
		require.NoError(t, err)
		assert.Equal(t, "ops", claims.Subject)
		assert.Equal(t, auth.RoleAdmin, claims.Role)
		assert.WithinDuration(t, time.Now().Add(5*time.Minute), claims.ExpiresAt, time.Minute)
	})

	t.Run("requires subject", func(t *testing.T) {
		t.Setenv("ADMIN_JWT_SECRET", secret)
		_, err := execute(t, "token")
		assert.Error(t, err)
	})

	t.Run("rejects weak secret", func(t *testing.T) {
		t.Setenv("ADMIN_JWT_SECRET", "short")
		_, err := execute(t, "token", "--subject", "ops")
		assert.ErrorIs(t, err, auth.ErrWeakSecret)
	})
}
