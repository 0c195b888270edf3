package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps files under a directory served at BaseURL
type LocalStore struct {
	Dir     string
	BaseURL string
}

func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}
}

func (s *LocalStore) Upload(ctx context.Context, f File, folder string) (Asset, error) {
	dir := filepath.Join(s.Dir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Asset{}, fmt.Errorf("create upload directory: %w", err)
	}

	id := newID(f.Name)
	out, err := os.Create(filepath.Join(dir, id))
	if err != nil {
		return Asset{}, fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, f.Body); err != nil {
		return Asset{}, fmt.Errorf("save file: %w", err)
	}
	return Asset{URL: s.BaseURL + "/" + objectKey(folder, id), ID: id}, nil
}

// Delete removes a stored file; deleting a missing file is not an error
func (s *LocalStore) Delete(ctx context.Context, id, folder string) error {
	err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(objectKey(folder, id))))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
