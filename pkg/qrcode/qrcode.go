// Package qrcode renders short URLs as PNG QR codes.
package qrcode

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the side length in pixels of generated images.
const DefaultSize = 256

// PNG encodes text as a QR code image of size x size pixels.
func PNG(text string, size int) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("empty qr content")
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}

// DataURI returns the QR code for text as a base64 data URI.
func DataURI(text string, size int) (string, error) {
	png, err := PNG(text, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
