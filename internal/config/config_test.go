package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("defaults with overrides", func(t *testing.T) {
		t.Setenv("DATABASE_PATH", filepath.Join(dir, "db", "story.db"))
		t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
		t.Setenv("OPENAI_MODEL", "")
		t.Setenv("MAX_ATTEMPTS", "")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
		assert.Equal(t, 5, cfg.MaxAttempts)
		assert.DirExists(t, filepath.Join(dir, "db"))
		assert.DirExists(t, filepath.Join(dir, "uploads"))
	})

	t.Run("unparsable attempts fall back", func(t *testing.T) {
		t.Setenv("DATABASE_PATH", filepath.Join(dir, "story.db"))
		t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
		t.Setenv("MAX_ATTEMPTS", "lots")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.MaxAttempts)
	})

	t.Run("non-positive attempts rejected", func(t *testing.T) {
		t.Setenv("DATABASE_PATH", filepath.Join(dir, "story.db"))
		t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
		t.Setenv("MAX_ATTEMPTS", "0")

		_, err := Load()
		assert.Error(t, err)
	})
}
