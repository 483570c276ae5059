package faceset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath is returned by Open when the path does not end in
	// the .dfs suffix. The file is not created or touched in that case.
	ErrInvalidPath = errors.New("invalid faceset path")

	// ErrClosed is returned by every operation on a closed handle.
	ErrClosed = errors.New("faceset is closed")

	// ErrUnsupportedFormat is returned by UpsertImage for a format tag
	// outside the supported set.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrInvalidQuality is returned by UpsertImage when quality is
	// outside [0..100].
	ErrInvalidQuality = errors.New("quality must be in range [0..100]")

	// ErrEncode reports an image codec failure on write.
	ErrEncode = errors.New("image encode failed")

	// ErrDecode reports an image codec failure on read.
	ErrDecode = errors.New("image decode failed")

	// ErrCorruptRecord reports a stored face-mark record that cannot be
	// deserialized. The wrapping error names the row's UUID.
	ErrCorruptRecord = errors.New("corrupt face mark record")

	// ErrStorageIO reports a failure of the underlying file or
	// transaction, including lock-acquisition timeouts.
	ErrStorageIO = errors.New("storage failure")
)

// storageError wraps a low-level database error so callers can classify
// it with errors.Is(err, ErrStorageIO) while keeping the cause visible.
func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageIO, err)
}
