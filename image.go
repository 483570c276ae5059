package faceset

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/msomdec/faceset/internal/imgcodec"
	"github.com/msomdec/faceset/internal/sqlite"
)

// Format selects the codec an image is stored with.
type Format string

const (
	// FormatWebP stores lossless VP8L. Quality is validated but has no
	// effect on webp output.
	FormatWebP Format = imgcodec.WebP
	// FormatPNG is lossless.
	FormatPNG Format = imgcodec.PNG
	// FormatJPEG is lossy; quality applies.
	FormatJPEG Format = imgcodec.JPEG
	// FormatJPEG2000 is recognized for file compatibility only; no
	// codec is available.
	FormatJPEG2000 Format = imgcodec.JPEG2000
)

// Image is a named pixel buffer. At rest it is held as encoded bytes in
// the format chosen at upsert time; Bitmap is the decoded form.
type Image struct {
	UUID   uuid.UUID
	Name   string
	Bitmap *Bitmap
}

func (f Format) valid() bool {
	switch f {
	case FormatWebP, FormatPNG, FormatJPEG, FormatJPEG2000:
		return true
	}
	return false
}

// supportsChannels reports whether the codec can carry a buffer with the
// given channel count. jp2 is excluded from the matrix; its encode fails
// later regardless.
func (f Format) supportsChannels(c int) bool {
	switch f {
	case FormatPNG:
		return c == 1 || c == 3 || c == 4
	case FormatJPEG:
		return c == 1 || c == 3
	case FormatWebP:
		return c == 3 || c == 4
	}
	return true
}

// UpsertImage encodes the image's pixel buffer with the given format and
// quality, then inserts it or updates it in place if its UUID already
// exists. A failed encode leaves the table untouched.
func (fs *Faceset) UpsertImage(ctx context.Context, img *Image, format Format, quality int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	if !format.valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if quality < 0 || quality > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidQuality, quality)
	}
	if img.Bitmap == nil {
		return fmt.Errorf("%w: image has no pixel buffer", ErrEncode)
	}
	if !format.supportsChannels(img.Bitmap.Channels) {
		return fmt.Errorf("%w: %s does not support %d channels", ErrEncode, format, img.Bitmap.Channels)
	}

	goImg, err := img.Bitmap.toImage()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	data, err := imgcodec.Encode(goImg, string(format), quality)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	row := sqlite.ImageRow{
		UUID:   img.UUID[:],
		Name:   sql.NullString{String: img.Name, Valid: true},
		Format: string(format),
		Data:   data,
	}
	if err := fs.images.Upsert(ctx, row); err != nil {
		return storageError("upsert image", err)
	}
	return nil
}

// ImageByUUID returns the image with the given UUID, decoded to a pixel
// buffer, or nil when absent.
func (fs *Faceset) ImageByUUID(ctx context.Context, id uuid.UUID) (*Image, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return nil, ErrClosed
	}

	row, err := fs.images.ByUUID(ctx, id[:])
	if err != nil {
		return nil, storageError("get image", err)
	}
	if row == nil {
		return nil, nil
	}
	return imageFromRow(*row)
}

// ImageCount returns the number of stored images.
func (fs *Faceset) ImageCount(ctx context.Context) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return 0, ErrClosed
	}

	n, err := fs.images.Count(ctx)
	if err != nil {
		return 0, storageError("count images", err)
	}
	return n, nil
}

// AllImages returns every stored image, decoded. Cost scales with the
// total encoded data; prefer ImageByUUID for selective access. It fails
// on the first row whose bytes do not decode.
func (fs *Faceset) AllImages(ctx context.Context) ([]*Image, error) {
	rows, err := fs.fetchImageRows(ctx)
	if err != nil {
		return nil, err
	}

	images := make([]*Image, 0, len(rows))
	for _, row := range rows {
		img, err := imageFromRow(row)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// IterImages returns an iterator over all images. Encoded rows are
// snapshotted when IterImages is called; each image is decoded lazily
// during iteration. A row that fails to decode is yielded as an error
// and ends the sequence.
func (fs *Faceset) IterImages(ctx context.Context) iter.Seq2[*Image, error] {
	rows, err := fs.fetchImageRows(ctx)
	return func(yield func(*Image, error) bool) {
		if err != nil {
			yield(nil, err)
			return
		}
		for _, row := range rows {
			img, derr := imageFromRow(row)
			if derr != nil {
				yield(nil, derr)
				return
			}
			if !yield(img, nil) {
				return
			}
		}
	}
}

func (fs *Faceset) fetchImageRows(ctx context.Context) ([]sqlite.ImageRow, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return nil, ErrClosed
	}

	rows, err := fs.images.All(ctx)
	if err != nil {
		return nil, storageError("list images", err)
	}
	return rows, nil
}

// DeleteAllImages removes every image in one transaction. Face marks
// referencing deleted images keep their reference.
func (fs *Faceset) DeleteAllImages(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return ErrClosed
	}

	if err := fs.images.DeleteAll(ctx); err != nil {
		return storageError("delete all images", err)
	}
	return nil
}

func imageFromRow(row sqlite.ImageRow) (*Image, error) {
	goImg, err := imgcodec.Decode(row.Data, row.Format)
	if err != nil {
		return nil, fmt.Errorf("image %s: %w: %w", uuidLabel(row.UUID), ErrDecode, err)
	}

	img := &Image{Name: row.Name.String, Bitmap: bitmapFromImage(goImg)}
	copy(img.UUID[:], row.UUID)
	return img, nil
}
