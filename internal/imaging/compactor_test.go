package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"testing"

	"postsync/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisyPNGDataURI(t *testing.T, w, h int) string {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestCompact_ShrinksLargeImage(t *testing.T) {
	t.Parallel()
	in := noisyPNGDataURI(t, 400, 100)
	c := NewCompactor(1, 200, 70)

	out := c.Compact(context.Background(), in)

	require.True(t, strings.HasPrefix(out, "data:image/webp;base64,"), out[:32])
	assert.Less(t, len(out), len(in))

	raw, err := decodeDataURI(out)
	require.NoError(t, err)
	img, format, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "webp", format)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestCompact_LeavesValueAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	small := noisyPNGDataURI(t, 4, 4)

	tests := []struct {
		name string
		c    *Compactor
		in   string
	}{
		{"Nil Compactor", nil, small},
		{"Disabled", NewCompactor(0, 100, 70), small},
		{"Below Threshold", NewCompactor(len(small)+1, 100, 70), small},
		{"Not A Data URI", NewCompactor(1, 100, 70), "https://img.test/cat.png"},
		{"Not Base64", NewCompactor(1, 100, 70), "data:image/svg+xml,<svg/>"},
		{"Not An Image", NewCompactor(1, 100, 70), "data:text/plain;base64,aGVsbG8="},
		{"Corrupt Payload", NewCompactor(1, 100, 70), "data:image/png;base64,AAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.in, tt.c.Compact(ctx, tt.in))
		})
	}
}

func TestResizeToFit_KeepsSmallImages(t *testing.T) {
	t.Parallel()
	src := image.NewRGBA(image.Rect(0, 0, 10, 20))
	assert.Same(t, src, resizeToFit(src, 100, 100))

	out := resizeToFit(image.NewRGBA(image.Rect(0, 0, 100, 400)), 50, 50)
	assert.Equal(t, image.Rect(0, 0, 12, 50), out.Bounds())
}

func TestNewFromConfig_Defaults(t *testing.T) {
	t.Parallel()
	c := NewFromConfig(&config.Config{ImageCompactThresholdKB: 2})
	assert.Equal(t, 2048, c.threshold)
	assert.Equal(t, DefaultMaxDimension, c.maxDimension)
	assert.Equal(t, DefaultWebPQuality, c.quality)
}
