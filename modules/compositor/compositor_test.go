package compositor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"admachine-studio/modules/common/config"
	"admachine-studio/modules/common/utils"
	"admachine-studio/modules/creative"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompositor(t *testing.T) *Compositor {
	t.Helper()
	c, err := NewCompositor(&config.Config{
		BrandName:        "admachine",
		BrandAccentColor: "#0071e3",
	}, zerolog.Nop())
	require.NoError(t, err)
	c.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return c
}

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: 90, B: uint8(y % 256), A: 255})
		}
	}
	return img
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := utils.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func TestComposeIsDeterministic(t *testing.T) {
	c := newTestCompositor(t)
	base := solidImage(512, 512)
	overlay := creative.ImageOverlay{MainText: "Transforme sua carreira hoje", CTA: "Saiba mais"}

	first, err := c.Compose(base, overlay, creative.FormatFeed)
	require.NoError(t, err)
	second, err := c.Compose(base, overlay, creative.FormatFeed)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(encode(t, first), encode(t, second)))
}

func TestComposeDoesNotTouchBase(t *testing.T) {
	c := newTestCompositor(t)
	base := solidImage(256, 256)
	before := append([]byte(nil), base.Pix...)

	_, err := c.Compose(base, creative.ImageOverlay{MainText: "Olá"}, creative.FormatFeed)
	require.NoError(t, err)
	assert.Equal(t, before, base.Pix)
}

func TestNoButtonWithoutCTA(t *testing.T) {
	c := newTestCompositor(t)

	plan, err := c.Plan(1024, 1024, creative.ImageOverlay{MainText: "Mentoria exclusiva"}, creative.FormatFeed)
	require.NoError(t, err)
	assert.Nil(t, plan.Button)
	assert.Empty(t, plan.CTA)
	assert.InDelta(t, 1024*0.85, plan.LineY[0], 1e-9)

	base := solidImage(400, 400)
	blank, err := c.Compose(base, creative.ImageOverlay{MainText: "Mentoria exclusiva"}, creative.FormatFeed)
	require.NoError(t, err)
	spaces, err := c.Compose(base, creative.ImageOverlay{MainText: "Mentoria exclusiva", CTA: "   "}, creative.FormatFeed)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(encode(t, blank), encode(t, spaces)))
}

func TestFeedScenarioWithCTA(t *testing.T) {
	c := newTestCompositor(t)
	overlay := creative.ImageOverlay{
		MainText: "Aprenda marketing digital do zero ao avançado",
		CTA:      "Quero agora",
	}

	plan, err := c.Plan(1024, 1024, overlay, creative.FormatFeed)
	require.NoError(t, err)

	assert.InDelta(t, 1024*0.065, plan.FontSize, 1e-9)
	assert.InDelta(t, plan.FontSize*1.15, plan.LineHeight, 1e-9)
	assert.InDelta(t, 1024*0.70, plan.LineY[0], 1e-9)
	require.GreaterOrEqual(t, len(plan.Lines), 2)
	assert.Equal(t, "APRENDA", strings.Fields(plan.Lines[0])[0])

	face, err := c.face(plan.FontSize)
	require.NoError(t, err)
	measure := measurer(face)
	for _, line := range plan.Lines {
		if strings.Contains(line, " ") {
			assert.LessOrEqual(t, measure(line), plan.MaxTextWidth, line)
		}
	}

	require.NotNil(t, plan.Button)
	btn := plan.Button
	lastLine := plan.LineY[len(plan.LineY)-1]
	assert.Greater(t, btn.Y, lastLine)
	assert.InDelta(t, 512, btn.X+btn.W/2, 1e-6)
	assert.Equal(t, "QUERO AGORA", plan.CTA)
	assert.InDelta(t, plan.FontSize*0.38, plan.CTAFontSize, 1e-9)

	out, err := c.Compose(solidImage(1024, 1024), overlay, creative.FormatFeed)
	require.NoError(t, err)

	// left padding of the button is plain accent colour
	px := out.At(int(btn.X+ctaPadX*plan.CTAFontSize/2), int(btn.Y+btn.H/2))
	r, g, b, a := px.RGBA()
	assert.Equal(t, [4]uint32{0x00, 0x71, 0xe3, 0xff}, [4]uint32{r >> 8, g >> 8, b >> 8, a >> 8})
}

func TestStoriesUsesLargerFont(t *testing.T) {
	c := newTestCompositor(t)
	overlay := creative.ImageOverlay{MainText: "Curso presencial"}

	feed, err := c.Plan(720, 1280, overlay, creative.FormatFeed)
	require.NoError(t, err)
	stories, err := c.Plan(720, 1280, overlay, creative.FormatStories)
	require.NoError(t, err)

	assert.InDelta(t, 720*0.075, stories.FontSize, 1e-9)
	assert.Greater(t, stories.FontSize, feed.FontSize)
	assert.InDelta(t, 720*0.08, stories.Padding, 1e-9)
}

func TestRender(t *testing.T) {
	c := newTestCompositor(t)
	locator := utils.ToDataURL(encode(t, solidImage(300, 300)), "image/png")

	asset, err := c.Render(context.Background(), locator, creative.ImageOverlay{MainText: "Oferta"}, creative.FormatFeed, EncodingPNG)
	require.NoError(t, err)

	assert.Equal(t, "admachine-feed-1700000000123.png", asset.Filename)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.True(t, strings.HasPrefix(asset.DataURL(), "data:image/png;base64,"))

	img, format, err := utils.DecodeImage(asset.Data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 300, 300), img.Bounds())
}

func TestRenderFailsOnUndecodableImage(t *testing.T) {
	c := newTestCompositor(t)

	for name, locator := range map[string]string{
		"empty":     "",
		"not image": utils.ToDataURL([]byte("hello"), "image/png"),
	} {
		t.Run(name, func(t *testing.T) {
			asset, err := c.Render(context.Background(), locator, creative.ImageOverlay{MainText: "x"}, creative.FormatFeed, EncodingPNG)
			assert.ErrorIs(t, err, creative.ErrCompositionFailure)
			assert.Nil(t, asset)
		})
	}
}

func TestRenderHonoursCancelledContext(t *testing.T) {
	c := newTestCompositor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	locator := utils.ToDataURL(encode(t, solidImage(10, 10)), "image/png")
	_, err := c.Render(ctx, locator, creative.ImageOverlay{MainText: "x"}, creative.FormatStories, EncodingPNG)
	assert.ErrorIs(t, err, creative.ErrCompositionFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilenameAndEncoding(t *testing.T) {
	at := time.UnixMilli(42)
	assert.Equal(t, "acme-stories-42.webp", Filename("acme", creative.FormatStories, at, EncodingWebP))

	enc, err := ParseEncoding("")
	require.NoError(t, err)
	assert.Equal(t, EncodingPNG, enc)

	enc, err = ParseEncoding("WEBP")
	require.NoError(t, err)
	assert.Equal(t, "image/webp", enc.ContentType())

	_, err = ParseEncoding("gif")
	assert.Error(t, err)
}

func TestNewCompositorRejectsBadColour(t *testing.T) {
	_, err := NewCompositor(&config.Config{BrandName: "x", BrandAccentColor: "blue"}, zerolog.Nop())
	assert.Error(t, err)
}
