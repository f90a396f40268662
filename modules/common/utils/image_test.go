package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataURLRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})

	data, err := EncodePNG(img)
	require.NoError(t, err)

	locator := ToDataURL(data, "image/png")
	assert.Contains(t, locator, "data:image/png;base64,")

	decoded, mimeType, err := ParseDataURL(locator)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mimeType)
	assert.Equal(t, data, decoded)

	back, format, err := DecodeImage(decoded)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, img.Bounds(), back.Bounds())
}

func TestParseDataURLRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"no comma":    "data:image/png;base64",
		"not base64":  "data:image/png,abc",
		"bad payload": "data:image/png;base64,@@@",
		"empty bytes": "data:image/png;base64,",
	}
	for name, locator := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseDataURL(locator)
			assert.Error(t, err)
		})
	}
}

func TestDecodeImageFailsOnNonImage(t *testing.T) {
	_, _, err := DecodeImage([]byte("definitely not pixels"))
	assert.Error(t, err)

	_, err = DetectMIMEType([]byte{0x00, 0x01})
	assert.Error(t, err)
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#0071e3")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x00, G: 0x71, B: 0xe3, A: 0xff}, c)

	short, err := ParseHexColor("fff")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, short)

	_, err = ParseHexColor("#12345")
	assert.Error(t, err)
	_, err = ParseHexColor("zzzzzz")
	assert.Error(t, err)
}
