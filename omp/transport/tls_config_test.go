package transport

import (
	"crypto/tls"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTLSConfig(t *testing.T) {
	pool := x509.NewCertPool()

	t.Run("nil is ignored", func(t *testing.T) {
		var cfg *dialConfig
		require.NotPanics(t, func() {
			cfg = newDialConfig(WithRootCAs(pool), WithTLSConfig(nil))
		})
		assert.Same(t, pool, cfg.tlsConfig.RootCAs)
		assert.Equal(t, tls.RenegotiateFreelyAsClient, cfg.tlsConfig.Renegotiation)
	})

	t.Run("keeps earlier options", func(t *testing.T) {
		cfg := newDialConfig(
			WithRootCAs(pool),
			WithServerName("manager.example.com"),
			WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS10}),
		)
		assert.Same(t, pool, cfg.tlsConfig.RootCAs)
		assert.Equal(t, "manager.example.com", cfg.tlsConfig.ServerName)
		assert.Equal(t, tls.RenegotiateFreelyAsClient, cfg.tlsConfig.Renegotiation)
		assert.Equal(t, uint16(tls.VersionTLS12), cfg.tlsConfig.MinVersion)
	})

	t.Run("explicit values win", func(t *testing.T) {
		own := x509.NewCertPool()
		base := &tls.Config{
			RootCAs:       own,
			ServerName:    "other",
			MinVersion:    tls.VersionTLS13,
			Renegotiation: tls.RenegotiateOnceAsClient,
		}
		cfg := newDialConfig(WithRootCAs(pool), WithTLSConfig(base))
		assert.Same(t, own, cfg.tlsConfig.RootCAs)
		assert.Equal(t, "other", cfg.tlsConfig.ServerName)
		assert.Equal(t, uint16(tls.VersionTLS13), cfg.tlsConfig.MinVersion)
		assert.Equal(t, tls.RenegotiateOnceAsClient, cfg.tlsConfig.Renegotiation)
		assert.NotSame(t, base, cfg.tlsConfig, "caller's config is copied")
	})

	t.Run("later options apply on top", func(t *testing.T) {
		cfg := newDialConfig(WithTLSConfig(&tls.Config{}), WithServerName("late"))
		assert.Equal(t, "late", cfg.tlsConfig.ServerName)
	})
}
