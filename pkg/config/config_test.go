package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("THREAD_SCAN_LIMIT", "")
	t.Setenv("VIEW_IDLE_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.ThreadScanLimit)
	assert.Equal(t, 30*time.Minute, cfg.ViewIdleTimeout)
	assert.Equal(t, 10, cfg.SummaryMaxMessages)
	assert.Equal(t, "session_token", cfg.SessionCookie)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sage.toml")
	content := `
[mail]
provider = "imap"
thread_scan_limit = 120

[imap]
server = "imap.example.com"
port = 143
tls = false
username = "me@example.com"

[ai]
provider = "ollama"
timeout = "5s"

[view]
idle_timeout = "10m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("THREAD_SCAN_LIMIT", "75")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("VIEW_IDLE_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "imap", cfg.MailProvider)
	assert.Equal(t, 75, cfg.ThreadScanLimit, "env wins over file")
	assert.Equal(t, "imap.example.com", cfg.IMAPServer)
	assert.Equal(t, 143, cfg.IMAPPort)
	assert.False(t, cfg.IMAPTLS)
	assert.Equal(t, "ollama", cfg.AIProvider)
	assert.Equal(t, 5*time.Second, cfg.AITimeout)
	assert.Equal(t, 10*time.Minute, cfg.ViewIdleTimeout)
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[mail\nprovider="), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}
