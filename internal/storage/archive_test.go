package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_Unit(t *testing.T) {
	memFs := afero.NewMemMapFs()
	archive := NewArchive(memFs, "transcripts")
	ctx := context.Background()

	name := "sala-2024-05-01.txt"
	content := "(12:00:00) ana entra na sala...\n"

	t.Run("List empty", func(t *testing.T) {
		names, err := archive.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("Save", func(t *testing.T) {
		written, err := archive.Save(ctx, name, bytes.NewReader([]byte(content)))
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), written)

		readBytes, err := afero.ReadFile(memFs, "transcripts/"+name)
		require.NoError(t, err)
		assert.Equal(t, content, string(readBytes))
	})

	t.Run("Open", func(t *testing.T) {
		file, err := archive.Open(ctx, name)
		require.NoError(t, err)
		defer file.Close()

		readBytes, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, content, string(readBytes))
	})

	t.Run("List", func(t *testing.T) {
		_, err := archive.Save(ctx, "a.txt", bytes.NewReader(nil))
		require.NoError(t, err)

		names, err := archive.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", name}, names)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, archive.Delete(ctx, name))

		exists, err := afero.Exists(memFs, "transcripts/"+name)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("rejects names leaving the archive", func(t *testing.T) {
		for _, bad := range []string{"", "../x.txt", "sub/x.txt", ".hidden", ".."} {
			_, err := archive.Save(ctx, bad, bytes.NewReader(nil))
			assert.True(t, errors.Is(err, ErrInvalidName), "name %q", bad)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := archive.Save(canceled, "late.txt", bytes.NewReader(nil))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
