// Package imgcodec encodes and decodes image payloads for the formats a
// faceset file may carry. webp uses the pure-Go nativewebp encoder
// (lossless VP8L) and the x/image decoder; png and jpg use the standard
// library. jp2 is part of the on-disk format but has no Go codec.
package imgcodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/webp"
)

// Supported format tags, as recorded in the UImage format column.
const (
	WebP     = "webp"
	PNG      = "png"
	JPEG     = "jpg"
	JPEG2000 = "jp2"
)

// ErrNoJPEG2000 reports that the jp2 tag was recognized but no JPEG 2000
// codec is available.
var ErrNoJPEG2000 = errors.New("no jpeg2000 codec available")

// Encode serializes img with the given format tag. quality applies to
// jpg only; png and webp are lossless here.
func Encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case PNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case JPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpg: %w", err)
		}
	case WebP:
		if err := nativewebp.Encode(&buf, toNRGBA(img), nil); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	case JPEG2000:
		return nil, ErrNoJPEG2000
	default:
		return nil, fmt.Errorf("unknown format tag %q", format)
	}
	return buf.Bytes(), nil
}

// Decode deserializes data using the recorded format tag.
func Decode(data []byte, format string) (image.Image, error) {
	switch format {
	case PNG:
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode png: %w", err)
		}
		return img, nil
	case JPEG:
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode jpg: %w", err)
		}
		return img, nil
	case WebP:
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return img, nil
	case JPEG2000:
		return nil, ErrNoJPEG2000
	default:
		return nil, fmt.Errorf("unknown format tag %q", format)
	}
}

func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	dst := image.NewNRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Src)
	return dst
}
