package submission

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/url"
	"strings"
)

var (
	ErrNotDataURL       = errors.New("not a data URL")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrImageTooLarge    = errors.New("image dimensions exceed limit")
)

// DefaultMaxDecodePixels bounds the declared size of a signature image
// (4096x4096) before any pixel buffer is allocated.
const DefaultMaxDecodePixels = 1 << 24

// DecodeDataURL returns the payload and media type of an RFC 2397 URL.
func DecodeDataURL(raw string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(raw), "data:")
	if !ok {
		return nil, "", ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrNotDataURL
	}
	params := strings.Split(meta, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	if mediaType == "" {
		mediaType = "text/plain"
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("data URL payload: %w", err)
		}
		return []byte(data), mediaType, nil
	}
	// browsers emit standard padding; tolerate whitespace and missing padding
	payload = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, payload)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return nil, "", fmt.Errorf("data URL payload: %w", err)
	}
	return data, mediaType, nil
}

// DecodePNG decodes a signature data URL into an image. The media type must
// be image/png. The header is checked first: an image declaring more than
// maxPixels pixels fails with ErrImageTooLarge without being decoded. A
// maxPixels of zero or less applies DefaultMaxDecodePixels.
func DecodePNG(raw string, maxPixels int) (image.Image, error) {
	data, mediaType, err := DecodeDataURL(raw)
	if err != nil {
		return nil, err
	}
	if mediaType != "image/png" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, mediaType)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxDecodePixels
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png header: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d declared, limit %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}
