package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	gcs "cloud.google.com/go/storage"
)

// FirebaseStore keeps files in the Firebase Storage bucket
type FirebaseStore struct {
	bucket *gcs.BucketHandle
}

func NewFirebaseStore(bucket *gcs.BucketHandle) *FirebaseStore {
	return &FirebaseStore{bucket: bucket}
}

func (s *FirebaseStore) Upload(ctx context.Context, f File, folder string) (Asset, error) {
	id := newID(f.Name)
	obj := s.bucket.Object(objectKey(folder, id))

	w := obj.NewWriter(ctx)
	w.ContentType = contentType(id)
	w.CacheControl = "public, max-age=31536000"
	if _, err := io.Copy(w, f.Body); err != nil {
		_ = w.Close()
		return Asset{}, fmt.Errorf("upload object: %w", err)
	}
	if err := w.Close(); err != nil {
		return Asset{}, fmt.Errorf("finalize object: %w", err)
	}

	link := fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media",
		obj.BucketName(), url.PathEscape(obj.ObjectName()))
	return Asset{URL: link, ID: id}, nil
}

func (s *FirebaseStore) Delete(ctx context.Context, id, folder string) error {
	err := s.bucket.Object(objectKey(folder, id)).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}
