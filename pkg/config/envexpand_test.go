package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_HOST", "db.internal")
	t.Setenv("EXPAND_PORT", "5432")

	out := ExpandEnv([]byte("addr: {{.EXPAND_HOST}}:{{.EXPAND_PORT}}"))
	assert.Equal(t, "addr: db.internal:5432", string(out))
}

func TestExpandEnvMissingVarIsEmpty(t *testing.T) {
	out := ExpandEnv([]byte("key: '{{.DEFINITELY_NOT_SET_ANYWHERE}}'"))
	assert.Equal(t, "key: ''", string(out))
}

func TestExpandEnvPreservesDollar(t *testing.T) {
	in := []byte(`pattern: "^secret.*$"`)
	assert.Equal(t, in, ExpandEnv(in))
}

func TestExpandEnvMalformedTemplatePassesThrough(t *testing.T) {
	in := []byte("key: {{.unclosed")
	assert.Equal(t, in, ExpandEnv(in))
}
