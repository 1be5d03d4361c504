package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalValidTOML = `
[server]
listen_addr = "0.0.0.0:8080"

[identity]
source = "header"
client_id_header = "X-Client-Id"
group_header = "X-Client-Group"
group_values = ["default"]

[llm.providers.openai]
kind = "openai"
api_key = "sk-test"
model_filter = "gpt-.*"
`

func TestLoadConfigParsesMinimalDocument(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(minimalValidTOML))

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.ListenAddr)
	require.Contains(t, cfg.LLM.Providers, "openai")
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Providers["openai"].Kind)
	assert.Equal(t, "openai", cfg.LLM.Providers["openai"].Name)
}

func TestLoadConfigCapturesProviderDeclarationOrder(t *testing.T) {
	const doc = `
[server]
listen_addr = "0.0.0.0:8080"

[identity]
source = "header"
client_id_header = "X-Client-Id"
group_header = "X-Client-Group"
group_values = ["default"]

[llm.providers.zeta]
kind = "openai"
api_key = "sk-test"
model_filter = ".*"

[llm.providers.alpha]
kind = "anthropic"
api_key = "sk-test"
model_filter = ".*"
`
	cfg, err := LoadConfig(strings.NewReader(doc))

	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha"}, cfg.LLM.ProviderOrder)
}

func TestLoadConfigRejectsProviderWithNoModelsOrFilter(t *testing.T) {
	const doc = `
[server]
listen_addr = "0.0.0.0:8080"

[llm.providers.openai]
kind = "openai"
api_key = "sk-test"
`
	_, err := LoadConfig(strings.NewReader(doc))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must set at least one explicit model or a model_filter")
}

func TestLoadConfigRejectsForwardTokenOnBedrock(t *testing.T) {
	const doc = `
[server]
listen_addr = "0.0.0.0:8080"

[llm.providers.bedrock]
kind = "bedrock"
forward_token = true
model_filter = ".*"
`
	_, err := LoadConfig(strings.NewReader(doc))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "forward_token is not allowed for Bedrock")
}

func TestLoadConfigRejectsUndeclaredGroupInAccessControl(t *testing.T) {
	const doc = `
[server]
listen_addr = "0.0.0.0:8080"

[identity]
group_values = ["default"]

[mcp.servers.local]
transport = "stdio"

[mcp.servers.local.stdio]
cmd = "echo"

[mcp.servers.local.access]
allow = ["admins"]
`
	_, err := LoadConfig(strings.NewReader(doc))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared group")
}

func TestLoadConfigRejectsStdioTransportMissingStdioBlock(t *testing.T) {
	const doc = `
[server]
listen_addr = "0.0.0.0:8080"

[mcp.servers.local]
transport = "stdio"
`
	_, err := LoadConfig(strings.NewReader(doc))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires [stdio]")
}

func TestLoadConfigRejectsUnresolvedEnvVar(t *testing.T) {
	const doc = `
[server]
listen_addr = "{{ env.NEXUS_TEST_UNSET_ADDR }}"
`
	_, err := LoadConfig(strings.NewReader(doc))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEXUS_TEST_UNSET_ADDR")
}

func TestLoadConfigRejectsInvalidModelFilterRegex(t *testing.T) {
	const doc = `
[server]
listen_addr = "0.0.0.0:8080"

[llm.providers.openai]
kind = "openai"
model_filter = "("
`
	_, err := LoadConfig(strings.NewReader(doc))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model_filter regex")
}
