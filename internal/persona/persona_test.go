package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	prompt, err := Load("", "")
	require.NoError(t, err)
	assert.Contains(t, prompt, "personal scheduling agent")
}

func TestLoadSoulAndContext(t *testing.T) {
	soul := writeFile(t, "soul.md", "You are Alex's agent.\n")
	personCtx := writeFile(t, "person_context.md", "Alex prefers mornings.\n")

	prompt, err := Load(soul, personCtx)
	require.NoError(t, err)
	assert.Equal(t, "You are Alex's agent.\n\n## Person Context\nAlex prefers mornings.", prompt)
}

func TestLoadContextOnly(t *testing.T) {
	personCtx := writeFile(t, "person_context.md", "Prefers afternoons.")

	prompt, err := Load("", personCtx)
	require.NoError(t, err)
	assert.Contains(t, prompt, "## Person Context\nPrefers afternoons")
	assert.Contains(t, prompt, "personal scheduling agent")
}

func TestLoadEmptyContextFile(t *testing.T) {
	soul := writeFile(t, "soul.md", "You are Alex's agent.")
	personCtx := writeFile(t, "person_context.md", "  \n")

	prompt, err := Load(soul, personCtx)
	require.NoError(t, err)
	assert.Equal(t, "You are Alex's agent.", prompt)
}

func TestLoadMissingSoulFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.md"), "")
	assert.Error(t, err)
}
