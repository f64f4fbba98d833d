package reliability

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 answers the three path-style calls S3Store makes.
type fakeS3 struct {
	mu       sync.Mutex
	requests []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodPut:
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>backups</Name>
  <Prefix>finance-instruments-backup-</Prefix>
  <KeyCount>1</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>finance-instruments-backup-2026-01-02-030405.tar.gz</Key>
    <LastModified>2026-01-02T03:04:05.000Z</LastModified>
    <Size>42</Size>
  </Contents>
</ListBucketResult>`)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newTestS3Store(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewS3Store(context.Background(), S3Config{
		Bucket:          "backups",
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}, zerolog.Nop())
	require.NoError(t, err)
	return store, fake
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestS3Store_RoundTrip(t *testing.T) {
	store, fake := newTestS3Store(t)
	ctx := context.Background()

	body := []byte("archive")
	require.NoError(t, store.Upload(ctx, "finance-instruments-backup-x.tar.gz", bytes.NewReader(body), int64(len(body))))

	objects, err := store.List(ctx, DefaultPrefix)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "finance-instruments-backup-2026-01-02-030405.tar.gz", objects[0].Key)
	assert.Equal(t, int64(42), objects[0].SizeBytes)
	assert.Equal(t, 2026, objects[0].LastModified.Year())

	require.NoError(t, store.Delete(ctx, objects[0].Key))

	seen := strings.Join(fake.seen(), "\n")
	assert.Contains(t, seen, "PUT /backups/finance-instruments-backup-x.tar.gz")
	assert.Contains(t, seen, "GET /backups")
	assert.Contains(t, seen, "DELETE /backups/finance-instruments-backup-2026-01-02-030405.tar.gz")
}
