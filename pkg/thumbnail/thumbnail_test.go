package thumbnail

import (
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateScalesImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.jpg")

	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())

	gen := NewGenerator("", "", nil)
	result := gen.Generate(context.Background(), src, "image/jpeg", 160)
	require.False(t, result.Placeholder)
	assert.Equal(t, "image/jpeg", result.ContentType)
	assert.NotEmpty(t, result.Data)
}

func TestGenerateFallsBackToPlaceholder(t *testing.T) {
	gen := NewGenerator("", "", nil)

	result := gen.Generate(context.Background(), "/does/not/exist.jpg", "image/jpeg", 160)
	require.True(t, result.Placeholder)
	assert.Equal(t, "image/svg+xml", result.ContentType)
	assert.Contains(t, string(result.Data), "IMG")
}

func TestGenerateUnknownTypePlaceholder(t *testing.T) {
	gen := NewGenerator("", "", nil)

	result := gen.Generate(context.Background(), "/tmp/whatever.bin", "application/zip", 160)
	require.True(t, result.Placeholder)
	assert.Contains(t, string(result.Data), "FILE")
}

func TestPlaceholderLabels(t *testing.T) {
	assert.Contains(t, string(Placeholder("video/mp4")), "VID")
	assert.Contains(t, string(Placeholder("audio/mpeg")), "AUD")
	assert.Contains(t, string(Placeholder("application/pdf")), "PDF")
	assert.Contains(t, string(Placeholder("text/plain")), "TXT")
}

func TestCachePath(t *testing.T) {
	assert.Equal(t, filepath.Join("thumbnails", "42", "md.jpg"), CachePath(42, "md"))
}
