// Package imaging shrinks locally stored post images so they fit within the local storage quota.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"strings"

	"postsync/internal/config"
	"postsync/internal/observability"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultMaxDimension = 1080
	DefaultWebPQuality  = 70
)

// Compactor re-encodes oversized image data URIs as downscaled WebP.
type Compactor struct {
	threshold    int
	maxDimension int
	quality      int
}

// NewCompactor creates a Compactor. Data URIs at or below thresholdBytes are left alone; a threshold
// of 0 disables compaction.
func NewCompactor(thresholdBytes, maxDimension, quality int) *Compactor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultWebPQuality
	}
	return &Compactor{threshold: thresholdBytes, maxDimension: maxDimension, quality: quality}
}

// NewFromConfig creates a Compactor from the IMAGE_* settings.
func NewFromConfig(cfg *config.Config) *Compactor {
	return NewCompactor(cfg.ImageCompactThresholdBytes(), cfg.ImageMaxDimension, cfg.ImageWebPQuality)
}

// Compact returns a smaller data URI for the same picture, or dataURI itself when it is small
// enough, not a base64 image, undecodable, or would not shrink. A nil Compactor returns dataURI.
func (c *Compactor) Compact(ctx context.Context, dataURI string) string {
	if c == nil || c.threshold <= 0 || len(dataURI) <= c.threshold {
		return dataURI
	}

	raw, err := decodeDataURI(dataURI)
	if err != nil {
		observability.Logger.DebugContext(ctx, "image left as is", slog.String("reason", err.Error()))
		return dataURI
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		observability.Logger.WarnContext(ctx, "image decode failed", slog.String("error", err.Error()))
		return dataURI
	}

	resized := resizeToFit(img, c.maxDimension, c.maxDimension)
	encoded, err := encodeWebP(resized, c.quality)
	if err != nil {
		observability.Logger.WarnContext(ctx, "webp encode failed", slog.String("error", err.Error()))
		return dataURI
	}

	out := "data:image/webp;base64," + base64.StdEncoding.EncodeToString(encoded)
	if len(out) >= len(dataURI) {
		return dataURI
	}
	observability.Logger.InfoContext(ctx, "image compacted",
		slog.String("format", format),
		slog.Int("before_bytes", len(dataURI)),
		slog.Int("after_bytes", len(out)),
	)
	return out
}

// decodeDataURI extracts the payload of a base64 image data URI.
func decodeDataURI(dataURI string) ([]byte, error) {
	header, payload, found := strings.Cut(dataURI, ",")
	if !found || !strings.HasPrefix(header, "data:") {
		return nil, fmt.Errorf("not a data URI")
	}
	meta := strings.TrimPrefix(header, "data:")
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data URI is not base64")
	}
	if !strings.HasPrefix(strings.ToLower(meta), "image/") {
		return nil, fmt.Errorf("data URI is not an image")
	}
	return base64.StdEncoding.DecodeString(payload)
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
