// Package faceset implements an embedded, transactional store for face
// datasets. A faceset is a single portable .dfs file (a SQLite database)
// holding three entity tables: face-mark annotations, person records and
// encoded images, plus a schema version stamp.
//
// The store is built for single-process use. One connection owns the file
// for the lifetime of the handle, every write runs inside an
// immediate-lock transaction, and all public methods are serialized by an
// internal mutex so a handle may be shared between goroutines.
//
// Face-mark geometry is caller-opaque: the store persists it as a
// versioned tagged binary record and never interprets it. References from
// a face mark to an image or person are weak — they are stored and
// returned verbatim, never enforced or cascaded. Use CheckIntegrity to
// report dangling references.
//
// Images are re-encoded on write with one of the supported codecs (webp,
// png, jpg, jp2) and decoded back to an 8-bit pixel buffer on read. The
// jp2 tag is recognized for compatibility with files written by other
// tooling, but no JPEG 2000 codec is available; encoding or decoding jp2
// data fails with ErrEncode or ErrDecode.
package faceset
