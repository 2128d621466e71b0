package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvVar(t *testing.T) {
	t.Setenv("BLOGPOSTS_TEST_VAR", "value")
	assert.Equal(t, "value", GetEnvVar("BLOGPOSTS_TEST_VAR"))
	assert.Panics(t, func() { GetEnvVar("BLOGPOSTS_TEST_MISSING") })
}

func TestGetEnvVarWithDefault(t *testing.T) {
	assert.Equal(t, "fallback", GetEnvVarWithDefault("BLOGPOSTS_TEST_MISSING", "fallback"))
	t.Setenv("BLOGPOSTS_TEST_VAR", "")
	assert.Equal(t, "", GetEnvVarWithDefault("BLOGPOSTS_TEST_VAR", "fallback"))
}

func TestGetEnvDurationWithDefault(t *testing.T) {
	assert.Equal(t, 10*time.Second, GetEnvDurationWithDefault("BLOGPOSTS_TEST_MISSING", 10*time.Second))
	t.Setenv("BLOGPOSTS_TEST_TIMEOUT", "250ms")
	assert.Equal(t, 250*time.Millisecond, GetEnvDurationWithDefault("BLOGPOSTS_TEST_TIMEOUT", time.Second))
	t.Setenv("BLOGPOSTS_TEST_TIMEOUT", "soon")
	assert.Panics(t, func() { GetEnvDurationWithDefault("BLOGPOSTS_TEST_TIMEOUT", time.Second) })
}
