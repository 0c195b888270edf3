package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckImage(t *testing.T) {
	assert.NoError(t, CheckImage("cat.JPG", 1024))
	assert.Error(t, CheckImage("notes.txt", 10))
	assert.Error(t, CheckImage("big.png", MaxImageSize+1))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir, "http://localhost:8080/uploads/")

	asset, err := store.Upload(ctx, File{Name: "photo.png", Body: strings.NewReader("png-bytes")}, FolderPosts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(asset.URL, "http://localhost:8080/uploads/posts/"))
	assert.True(t, strings.HasSuffix(asset.ID, ".png"))

	raw, err := os.ReadFile(filepath.Join(dir, FolderPosts, asset.ID))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(raw))

	require.NoError(t, store.Delete(ctx, asset.ID, FolderPosts))
	_, err = os.Stat(filepath.Join(dir, FolderPosts, asset.ID))
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, store.Delete(ctx, asset.ID, FolderPosts))
}
