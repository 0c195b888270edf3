// Package media stores uploaded images and returns their public location.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	FolderPosts   = "posts"
	FolderAvatars = "avatars"

	MaxImageSize = 5 * 1024 * 1024
)

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// Asset is a stored file; ID is what Delete needs later
type Asset struct {
	URL string `json:"url"`
	ID  string `json:"publicId"`
}

// File is an upload in flight
type File struct {
	Name string
	Size int64
	Body io.Reader
}

// Store is the media host
type Store interface {
	Upload(ctx context.Context, f File, folder string) (Asset, error)
	Delete(ctx context.Context, id, folder string) error
}

// CheckImage rejects files that are not small jpg, png, webp or gif images
func CheckImage(name string, size int64) error {
	if _, ok := allowedExt[strings.ToLower(filepath.Ext(name))]; !ok {
		return fmt.Errorf("only jpg, png, webp and gif images are allowed")
	}
	if size > MaxImageSize {
		return fmt.Errorf("image must be under 5MB")
	}
	return nil
}

// newID generates a unique object name keeping the original extension
func newID(name string) string {
	return uuid.New().String() + strings.ToLower(filepath.Ext(name))
}

func contentType(id string) string {
	if ct, ok := allowedExt[filepath.Ext(id)]; ok {
		return ct
	}
	return "application/octet-stream"
}

func objectKey(folder, id string) string {
	return path.Join(folder, path.Base(id))
}
