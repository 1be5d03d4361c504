package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafbase/nexus/internal/config"
)

type headerMap map[string]string

func (h headerMap) Header(name string) string { return h[name] }

func TestExtractorHeaderSource(t *testing.T) {
	e, err := NewExtractor(context.Background(), config.IdentityConfig{
		Source:         "header",
		ClientIDHeader: "X-Client-ID",
		GroupHeader:    "X-Client-Group",
	})
	require.NoError(t, err)

	ident, err := e.ValidateAndExtract(context.Background(), "", headerMap{
		"X-Client-ID":    "acme-co",
		"X-Client-Group": "enterprise",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-co", ident.ClientID)
	assert.Equal(t, "enterprise", ident.Group)
	assert.True(t, ident.HasClientID())
}

func TestExtractorNoOAuthNoBearerRequired(t *testing.T) {
	e, err := NewExtractor(context.Background(), config.IdentityConfig{Source: "header"})
	require.NoError(t, err)

	ident, err := e.ValidateAndExtract(context.Background(), "", headerMap{})
	require.NoError(t, err)
	assert.False(t, ident.HasClientID())
}

func TestExtractorRequiresJWKsURLWhenIssuerSet(t *testing.T) {
	_, err := NewExtractor(context.Background(), config.IdentityConfig{
		Source: "jwt",
		Issuer: "https://issuer.example.com/",
	})
	assert.Error(t, err)
}

func TestClientIPPriorityAndTrustedHops(t *testing.T) {
	// No X-Real-Ip, no forwarded chain: remote addr wins.
	assert.Equal(t, "10.0.0.5", ClientIP("", "", "10.0.0.5", 0))

	// Real-IP always wins when present.
	assert.Equal(t, "1.2.3.4", ClientIP("1.2.3.4", "5.6.7.8, 9.9.9.9", "10.0.0.5", 1))

	// chain: client, proxy1, proxy2 with 1 trusted hop (the LB) -> proxy1 is
	// the real client-facing hop, so it's the address we trust.
	chain := "203.0.113.9, 70.41.3.18, 150.172.238.178"
	assert.Equal(t, "70.41.3.18", ClientIP("", chain, "", 1))

	// trustedHops >= len(chain): fall back to leftmost.
	assert.Equal(t, "203.0.113.9", ClientIP("", chain, "", 99))
}
