package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstituteEnvReplacesKnownVariable(t *testing.T) {
	t.Setenv("NEXUS_TEST_KEY", "sk-abc123")

	out, err := SubstituteEnv([]byte(`api_key = "{{ env.NEXUS_TEST_KEY }}"`))

	require.NoError(t, err)
	assert.Equal(t, `api_key = "sk-abc123"`, string(out))
}

func TestSubstituteEnvToleratesTightBraces(t *testing.T) {
	t.Setenv("NEXUS_TEST_KEY", "value")

	out, err := SubstituteEnv([]byte(`x = "{{env.NEXUS_TEST_KEY}}"`))

	require.NoError(t, err)
	assert.Equal(t, `x = "value"`, string(out))
}

func TestSubstituteEnvUnresolvedVariableIsFatal(t *testing.T) {
	_, err := SubstituteEnv([]byte(`api_key = "{{ env.NEXUS_DOES_NOT_EXIST }}"`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEXUS_DOES_NOT_EXIST")
}

func TestSubstituteEnvLeavesPlainTextAlone(t *testing.T) {
	out, err := SubstituteEnv([]byte(`listen_addr = "0.0.0.0:8080"`))

	require.NoError(t, err)
	assert.Equal(t, `listen_addr = "0.0.0.0:8080"`, string(out))
}
