package faceset

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Bitmap is an 8-bit pixel buffer: row-major, interleaved channels.
// Channels is 1 (gray), 3 (RGB) or 4 (RGBA). len(Pix) must equal
// Width*Height*Channels.
type Bitmap struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// NewBitmap allocates a zeroed buffer of the given shape.
func NewBitmap(width, height, channels int) *Bitmap {
	return &Bitmap{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

func (b *Bitmap) validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", b.Width, b.Height)
	}
	switch b.Channels {
	case 1, 3, 4:
	default:
		return fmt.Errorf("unsupported channel count %d", b.Channels)
	}
	if want := b.Width * b.Height * b.Channels; len(b.Pix) != want {
		return fmt.Errorf("pixel buffer has %d bytes, want %d", len(b.Pix), want)
	}
	return nil
}

// toImage converts the buffer to a standard image for encoding.
func (b *Bitmap) toImage() (image.Image, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	switch b.Channels {
	case 1:
		dst := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
		copy(dst.Pix, b.Pix)
		return dst, nil
	case 3:
		dst := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
		si, di := 0, 0
		for range b.Width * b.Height {
			dst.Pix[di+0] = b.Pix[si+0]
			dst.Pix[di+1] = b.Pix[si+1]
			dst.Pix[di+2] = b.Pix[si+2]
			dst.Pix[di+3] = 0xff
			si += 3
			di += 4
		}
		return dst, nil
	default: // 4
		dst := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
		copy(dst.Pix, b.Pix)
		return dst, nil
	}
}

// bitmapFromImage converts a decoded image back to a pixel buffer.
// Channel normalization: gray sources map to 1 channel, YCbCr and
// alpha-less truecolor to 3, NRGBA to 4 unless every pixel is opaque
// (then the constant alpha is dropped and the result has 3 channels).
func bitmapFromImage(img image.Image) *Bitmap {
	switch src := img.(type) {
	case *image.Gray:
		return grayToBitmap(src)
	case *image.Gray16:
		return gray16ToBitmap(src)
	case *image.YCbCr:
		return ycbcrToBitmap(src)
	case *image.RGBA:
		return rgbaToBitmap(src)
	case *image.NRGBA:
		return nrgbaToBitmap(src)
	default:
		bounds := img.Bounds()
		dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return nrgbaToBitmap(dst)
	}
}

func grayToBitmap(src *image.Gray) *Bitmap {
	bounds := src.Bounds()
	b := NewBitmap(bounds.Dx(), bounds.Dy(), 1)
	for y := 0; y < b.Height; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Width]
		copy(b.Pix[y*b.Width:], row)
	}
	return b
}

func gray16ToBitmap(src *image.Gray16) *Bitmap {
	bounds := src.Bounds()
	b := NewBitmap(bounds.Dx(), bounds.Dy(), 1)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// Keep the high byte.
			b.Pix[i] = uint8(src.Gray16At(x, y).Y >> 8)
			i++
		}
	}
	return b
}

func ycbcrToBitmap(src *image.YCbCr) *Bitmap {
	bounds := src.Bounds()
	b := NewBitmap(bounds.Dx(), bounds.Dy(), 3)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := src.YCbCrAt(x, y)
			r, g, bl := color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
			b.Pix[i+0] = r
			b.Pix[i+1] = g
			b.Pix[i+2] = bl
			i += 3
		}
	}
	return b
}

func rgbaToBitmap(src *image.RGBA) *Bitmap {
	// *image.RGBA comes from alpha-less truecolor sources (png type 2);
	// alpha is constant and dropped.
	bounds := src.Bounds()
	b := NewBitmap(bounds.Dx(), bounds.Dy(), 3)
	di := 0
	for y := 0; y < b.Height; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+4*b.Width]
		for x := 0; x < b.Width; x++ {
			b.Pix[di+0] = row[4*x+0]
			b.Pix[di+1] = row[4*x+1]
			b.Pix[di+2] = row[4*x+2]
			di += 3
		}
	}
	return b
}

func nrgbaToBitmap(src *image.NRGBA) *Bitmap {
	bounds := src.Bounds()
	if src.Opaque() {
		b := NewBitmap(bounds.Dx(), bounds.Dy(), 3)
		di := 0
		for y := 0; y < b.Height; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+4*b.Width]
			for x := 0; x < b.Width; x++ {
				b.Pix[di+0] = row[4*x+0]
				b.Pix[di+1] = row[4*x+1]
				b.Pix[di+2] = row[4*x+2]
				di += 3
			}
		}
		return b
	}

	b := NewBitmap(bounds.Dx(), bounds.Dy(), 4)
	for y := 0; y < b.Height; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+4*b.Width]
		copy(b.Pix[y*4*b.Width:], row)
	}
	return b
}
