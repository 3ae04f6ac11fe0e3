package sink

import (
	"context"
	"fmt"
	"path"

	"github.com/local/medextract/internal/storage"
)

// S3 archives artifacts as encrypted objects under a per-request
// prefix.
type S3 struct {
	client   *storage.S3Client
	password string
}

func NewS3(client *storage.S3Client, password string) *S3 {
	return &S3{client: client, password: password}
}

func (s *S3) Save(ctx context.Context, a Artifacts) (Saved, error) {
	var saved Saved
	prefix := path.Join("results", a.RequestID)

	if len(a.Original) > 0 {
		key := path.Join(prefix, "original"+safeExt(a.OriginalName))
		meta := storage.ObjectMeta{OriginalName: a.OriginalName, ContentType: a.ContentType}
		if err := s.client.Upload(ctx, key, a.Original, s.password, meta); err != nil {
			return Saved{}, fmt.Errorf("archive original: %w", err)
		}
		saved.OriginalPath = key
	}

	if a.RawText != "" {
		key := path.Join(prefix, "extracted_text.txt")
		meta := storage.ObjectMeta{ContentType: "text/plain"}
		if err := s.client.Upload(ctx, key, []byte(a.RawText), s.password, meta); err != nil {
			return Saved{}, fmt.Errorf("archive extracted text: %w", err)
		}
		saved.TextPath = key
	}

	if len(a.ResultJSON) > 0 {
		key := path.Join(prefix, "result.json")
		meta := storage.ObjectMeta{ContentType: "application/json"}
		if err := s.client.Upload(ctx, key, a.ResultJSON, s.password, meta); err != nil {
			return Saved{}, fmt.Errorf("archive result: %w", err)
		}
		saved.ResultPath = key
	}

	return saved, nil
}
