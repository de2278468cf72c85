package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadYamlWithDefaults(t *testing.T) {
	path := writeFile(t, "config.yml", "jwt_secret: hunter2\nport: \"8080\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hunter2", cfg.JwtSecret)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.SelfContained)
	assert.Equal(t, "./database.db", cfg.SqlitePath)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadJson(t *testing.T) {
	path := writeFile(t, "config.json", `{"jwtSecret": "s3cret", "selfContained": false, "dbDatabase": "chat"}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.SelfContained)
	assert.Equal(t, "chat", cfg.DbDatabase)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, "config.yml", "jwt_secret: from-file\n")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JwtSecret)
}

func TestLoadSelfContainedFromFile(t *testing.T) {
	path := writeFile(t, "config.yml", "jwt_secret: x\nself_contained: false\ndb_database: chat\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.SelfContained)

	t.Setenv("SELF_CONTAINED", "true")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.SelfContained)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "Missing jwt secret", content: "port: \"8080\"\n"},
		{name: "Mysql without database", content: "jwt_secret: x\nself_contained: false\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yml", tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
