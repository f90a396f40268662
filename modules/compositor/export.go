package compositor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"admachine-studio/modules/common/metrics"
	"admachine-studio/modules/common/utils"
	"admachine-studio/modules/creative"
)

type Encoding string

const (
	EncodingPNG  Encoding = "png"
	EncodingWebP Encoding = "webp"
)

const webpQuality = 90

// ParseEncoding - empty means PNG
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return EncodingPNG, nil
	case "webp":
		return EncodingWebP, nil
	}
	return "", fmt.Errorf("unsupported encoding: %q", s)
}

func (e Encoding) ContentType() string {
	return "image/" + string(e)
}

// Asset - the downloadable composited image
type Asset struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DataURL - inline form used by the preview endpoint
func (a *Asset) DataURL() string {
	return utils.ToDataURL(a.Data, a.ContentType)
}

// Filename - <brand>-<format>-<unixMillis>.<ext>
func Filename(brand string, format creative.Format, at time.Time, enc Encoding) string {
	return fmt.Sprintf("%s-%s-%d.%s", brand, format.Slug(), at.UnixMilli(), enc)
}

// Render - decode the image locator, compose the overlay and encode the result.
// Any failure is reported as ErrCompositionFailure and nothing is returned.
func (c *Compositor) Render(ctx context.Context, locator string, overlay creative.ImageOverlay, format creative.Format, enc Encoding) (*Asset, error) {
	asset, err := c.render(ctx, locator, overlay, format, enc)
	if err != nil {
		metrics.CompositionsTotal.WithLabelValues(string(enc), "error").Inc()
		c.log.Error().Err(err).Str("format", string(format)).Msg("❌ [Compositor] Render failed")
		return nil, fmt.Errorf("%w: %w", creative.ErrCompositionFailure, err)
	}

	metrics.CompositionsTotal.WithLabelValues(string(enc), "success").Inc()
	c.log.Debug().
		Str("file", asset.Filename).
		Int("bytes", len(asset.Data)).
		Msg("✅ [Compositor] Asset rendered")
	return asset, nil
}

func (c *Compositor) render(ctx context.Context, locator string, overlay creative.ImageOverlay, format creative.Format, enc Encoding) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, _, err := utils.ParseDataURL(locator)
	if err != nil {
		return nil, err
	}
	base, _, err := utils.DecodeImage(raw)
	if err != nil {
		return nil, err
	}

	composed, err := c.Compose(base, overlay, format)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch enc {
	case EncodingWebP:
		data, err = utils.EncodeWebP(composed, webpQuality)
	default:
		enc = EncodingPNG
		data, err = utils.EncodePNG(composed)
	}
	if err != nil {
		return nil, err
	}

	return &Asset{
		Filename:    Filename(c.brand, format, c.now(), enc),
		ContentType: enc.ContentType(),
		Data:        data,
	}, nil
}
