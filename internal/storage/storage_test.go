package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	var s BlobStore = NewMemoryStore()

	require.NoError(t, s.Put(ctx, "a/b.txt", strings.NewReader("hello"), 5, "text/plain"))
	require.Error(t, s.Put(ctx, "bad", strings.NewReader("hello"), 3, "text/plain"))

	rc, err := s.Open(ctx, "a/b.txt")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "hello", string(b))

	require.NoError(t, s.Delete(ctx, "a/b.txt"))
	_, err = s.Open(ctx, "a/b.txt")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadMinIOConfig(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_USE_SSL", "true")
	cfg := LoadMinIOConfig()
	require.Equal(t, "minio:9000", cfg.Endpoint)
	require.True(t, cfg.UseSSL)
	require.Equal(t, "clubhub-attachments", cfg.Bucket)
	require.Equal(t, "us-east-1", cfg.Region)
}

func TestMinIOPresignedURL(t *testing.T) {
	s, err := newMinIOClient(&MinIOConfig{
		Endpoint: "minio.local:9000", AccessKey: "key", SecretKey: "secret",
		Bucket: "clubhub-attachments", Region: "us-east-1",
	})
	require.NoError(t, err)

	raw, err := s.PresignedURL(context.Background(), "messages/m1/a1", "kit list.pdf", 15*time.Minute)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/clubhub-attachments/messages/m1/a1", u.Path)
	q := u.Query()
	require.Equal(t, "900", q.Get("X-Amz-Expires"))
	require.NotEmpty(t, q.Get("X-Amz-Signature"))
	require.Equal(t, `attachment; filename="kit list.pdf"`, q.Get("response-content-disposition"))

	link, err := NewMemoryStore().PresignedURL(context.Background(), "k", "f", time.Minute)
	require.NoError(t, err)
	require.Empty(t, link)
}

func TestNewMinIOStorageRequiresEndpoint(t *testing.T) {
	_, err := NewMinIOStorage(context.Background(), &MinIOConfig{})
	require.Error(t, err)
}
