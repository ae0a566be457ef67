package blobstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "uploads/dr_a/doc.pdf", want: "uploads/dr_a/doc.pdf"},
		{key: "  doc.pdf ", want: "doc.pdf"},
		{key: "", wantErr: true},
		{key: "/etc/passwd", wantErr: true},
		{key: "../secret", wantErr: true},
		{key: "uploads/../../x", wantErr: true},
		{key: "a\\b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cleanKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key := "uploads/doctors/joshua_dines/ucl/abc123def456.pdf"
	require.NoError(t, store.Put(ctx, key, []byte("%PDF-1.7"), map[string]string{"Original-Filename": "UCL Protocol.pdf"}))

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	meta, err := store.Head(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "UCL Protocol.pdf", meta[MetaOriginalFilename])
}

func TestLocalStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(ctx, "uploads/missing.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = store.Head(ctx, "uploads/missing.pdf")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.Put(context.Background(), "../outside.pdf", []byte("x"), nil))
}

func TestNewLocalStore_RequiresDir(t *testing.T) {
	_, err := NewLocalStore("")
	assert.Error(t, err)
}

func TestS3Store_PresignGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewS3Store(ctx, S3Config{
		Bucket:          "protocols",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)

	url, err := store.PresignGet(ctx, "uploads/dr_a/doc.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/protocols/uploads/dr_a/doc.pdf?"), url)
	assert.Contains(t, url, "X-Amz-Expires=900")

	_, err = store.PresignGet(ctx, "../x", time.Minute)
	assert.Error(t, err)
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
