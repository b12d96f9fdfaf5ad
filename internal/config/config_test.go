package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("SURREAL_URL", "ws://localhost:8000/rpc")
	t.Setenv("SURREAL_NS", "chorus")
	t.Setenv("SURREAL_DB", "main")
	t.Setenv("CHORUS_HOME", "/tmp/chorus-home")
	t.Setenv("DB_QUERY_TIMEOUT", "")
	t.Setenv("MESSAGE_PAGE_SIZE", "")
	t.Setenv("AVATAR_BASE_URL", "")

	cfg := FromEnv()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultQueryTimeout, cfg.GetDBQueryTimeout())
	assert.Equal(t, DefaultMessagePageSize, cfg.GetMessagePageSize())
	assert.Equal(t, DefaultDBAccess, cfg.GetDBAccess())
	assert.Equal(t, "/tmp/chorus-home/avatars", cfg.GetAvatarDir())
	assert.Equal(t, "/avatars", cfg.GetAvatarBaseURL())
	assert.Equal(t, int64(DefaultAvatarMaxBytes), cfg.GetAvatarMaxBytes())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_QUERY_TIMEOUT", "250ms")
	t.Setenv("DB_EXECUTE_TIMEOUT", "3")
	t.Setenv("MESSAGE_PAGE_SIZE", "25")
	t.Setenv("AVATAR_BASE_URL", "https://cdn.example.com/avatars/")

	cfg := FromEnv()

	assert.Equal(t, 250*time.Millisecond, cfg.GetDBQueryTimeout())
	assert.Equal(t, 3*time.Second, cfg.GetDBExecuteTimeout())
	assert.Equal(t, 25, cfg.GetMessagePageSize())
	assert.Equal(t, "https://cdn.example.com/avatars", cfg.GetAvatarBaseURL())
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_QUERY_TIMEOUT", "soon")
	t.Setenv("MESSAGE_PAGE_SIZE", "lots")

	cfg := FromEnv()

	assert.Equal(t, DefaultQueryTimeout, cfg.GetDBQueryTimeout())
	assert.Equal(t, DefaultMessagePageSize, cfg.GetMessagePageSize())
}

func TestValidate_ReportsAllMissing(t *testing.T) {
	cfg := &Config{DBQueryTimeout: time.Second, DBExecuteTimeout: time.Second}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "SURREAL_URL")
	assert.Contains(t, err.Error(), "SURREAL_NS")
	assert.Contains(t, err.Error(), "SURREAL_DB")
	assert.Contains(t, err.Error(), "MESSAGE_PAGE_SIZE")
}
