package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // JPEG decoder
	"image/png"
	"strconv"
	"strings"

	_ "github.com/gen2brain/webp" // WebP decoder
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// ToDataURL - wrap raw image bytes into a data: locator
func ToDataURL(data []byte, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL - split a data: locator back into bytes and MIME type.
// Bare base64 (no "data:" prefix) is accepted and assumed to be PNG.
func ParseDataURL(locator string) ([]byte, string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, "", fmt.Errorf("empty image locator")
	}

	mimeType := "image/png"
	payload := locator
	if strings.HasPrefix(locator, "data:") {
		comma := strings.IndexByte(locator, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data url")
		}
		header := locator[len("data:"):comma]
		if !strings.HasSuffix(header, ";base64") {
			return nil, "", fmt.Errorf("data url is not base64 encoded")
		}
		if m := strings.TrimSuffix(header, ";base64"); m != "" {
			mimeType = m
		}
		payload = locator[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 image: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("image payload is empty")
	}
	return data, mimeType, nil
}

// DecodeImage - decode PNG, JPEG or WebP bytes
func DecodeImage(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// DetectMIMEType - sniff the registered decoders for the image format
func DetectMIMEType(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported image: %w", err)
	}
	return "image/" + format, nil
}

// EncodePNG - lossless export
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeWebP - lossy WebP export
func EncodeWebP(img image.Image, quality float32) ([]byte, error) {
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseHexColor - "#0071e3" / "0071e3" / "#07e" to an opaque colour
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour: %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour: %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
