package sheet

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

// qrRasterSize is the PNG edge length in pixels. At 22 mm this is roughly
// 300 DPI, enough for the scanner to decode at 150.
const qrRasterSize = 264

// QREncoder turns a payload into a square PNG.
type QREncoder interface {
	Encode(payload string) ([]byte, error)
}

// SkipQREncoder encodes with medium error correction.
type SkipQREncoder struct {
	Size int
}

func (e SkipQREncoder) Encode(payload string) ([]byte, error) {
	size := e.Size
	if size <= 0 {
		size = qrRasterSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr for %q: %w", payload, err)
	}
	return png, nil
}
