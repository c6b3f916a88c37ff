package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnvUsesSetValue(t *testing.T) {
	t.Setenv("KATARIBE_TEST_VAR", "value")
	assert.Equal(t, "value", ExpandEnv("${KATARIBE_TEST_VAR}"))
}

func TestExpandEnvFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "fallback", ExpandEnv("${KATARIBE_UNSET_VAR:-fallback}"))
}

func TestExpandEnvUnsetWithoutDefaultIsEmpty(t *testing.T) {
	assert.Equal(t, "", ExpandEnv("${KATARIBE_UNSET_VAR}"))
}
