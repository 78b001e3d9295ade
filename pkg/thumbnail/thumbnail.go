package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// Size names map to the bounding box in pixels.
var Sizes = map[string]int{
	"sm": 160,
	"md": 320,
	"lg": 640,
}

// Result holds a generated preview image.
type Result struct {
	Data        []byte
	ContentType string
	Placeholder bool
}

// Generator produces bounded preview images for stored media blobs.
// Images are scaled in-process; video frames and PDF covers are obtained
// by shelling out to ffmpeg and imagemagick. Any failure degrades to a
// type-labelled SVG placeholder instead of an error.
type Generator struct {
	ffmpegPath  string
	convertPath string
	logger      *zap.Logger
}

// NewGenerator constructs a Generator. Empty tool paths fall back to
// looking the binaries up on PATH.
func NewGenerator(ffmpegPath, convertPath string, logger *zap.Logger) *Generator {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if convertPath == "" {
		convertPath = "convert"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{ffmpegPath: ffmpegPath, convertPath: convertPath, logger: logger}
}

// Generate renders a preview for the blob at srcPath bounded by maxPx.
func (g *Generator) Generate(ctx context.Context, srcPath, mimeType string, maxPx int) *Result {
	if maxPx <= 0 {
		maxPx = Sizes["sm"]
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		if data, err := g.fromImage(srcPath, maxPx); err == nil {
			return &Result{Data: data, ContentType: "image/jpeg"}
		} else {
			g.logger.Debug("image thumbnail failed", zap.String("src", srcPath), zap.Error(err))
		}
	case strings.HasPrefix(mimeType, "video/"):
		if data, err := g.fromVideo(ctx, srcPath, maxPx); err == nil {
			return &Result{Data: data, ContentType: "image/jpeg"}
		} else {
			g.logger.Debug("video thumbnail failed", zap.String("src", srcPath), zap.Error(err))
		}
	case mimeType == "application/pdf":
		if data, err := g.fromPDF(ctx, srcPath, maxPx); err == nil {
			return &Result{Data: data, ContentType: "image/jpeg"}
		} else {
			g.logger.Debug("pdf thumbnail failed", zap.String("src", srcPath), zap.Error(err))
		}
	}

	return &Result{Data: Placeholder(mimeType), ContentType: "image/svg+xml", Placeholder: true}
}

func (g *Generator) fromImage(srcPath string, maxPx int) ([]byte, error) {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return encodeJPEG(scaleDown(img, maxPx))
}

func (g *Generator) fromVideo(ctx context.Context, srcPath string, maxPx int) ([]byte, error) {
	tmp, err := os.CreateTemp("", "poster-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("create poster temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath) //nolint:errcheck

	// Grab the frame at second one, matching the original poster behaviour.
	cmd := exec.CommandContext(ctx, g.ffmpegPath, "-y", "-ss", "00:00:01", "-i", srcPath, "-frames:v", "1", tmpPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame grab: %w: %s", err, bytes.TrimSpace(out))
	}

	img, err := imaging.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("decode poster frame: %w", err)
	}
	return encodeJPEG(scaleDown(img, maxPx))
}

func (g *Generator) fromPDF(ctx context.Context, srcPath string, maxPx int) ([]byte, error) {
	tmp, err := os.CreateTemp("", "cover-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("create cover temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath) //nolint:errcheck

	// First page only.
	cmd := exec.CommandContext(ctx, g.convertPath, "-density", "144", srcPath+"[0]", tmpPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("rasterise pdf cover: %w: %s", err, bytes.TrimSpace(out))
	}

	img, err := imaging.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("decode pdf cover: %w", err)
	}
	return encodeJPEG(scaleDown(img, maxPx))
}

func scaleDown(img image.Image, maxPx int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= maxPx && bounds.Dy() <= maxPx {
		return img
	}
	return imaging.Fit(img, maxPx, maxPx, imaging.Lanczos)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Placeholder returns a small type-labelled SVG used when no preview can
// be rendered for the blob.
func Placeholder(mimeType string) []byte {
	label := "FILE"
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		label = "IMG"
	case strings.HasPrefix(mimeType, "video/"):
		label = "VID"
	case strings.HasPrefix(mimeType, "audio/"):
		label = "AUD"
	case mimeType == "application/pdf":
		label = "PDF"
	case strings.HasPrefix(mimeType, "text/"):
		label = "TXT"
	}

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="160" height="160" viewBox="0 0 160 160">
<rect width="160" height="160" rx="12" fill="#e2e8f0"/>
<text x="80" y="92" font-family="sans-serif" font-size="36" font-weight="bold" fill="#64748b" text-anchor="middle">%s</text>
</svg>`, label)
	return []byte(svg)
}

// CachePath returns the relative cache location for a media thumbnail.
func CachePath(mediaID int64, size string) string {
	return filepath.Join("thumbnails", fmt.Sprintf("%d", mediaID), size+".jpg")
}
