package faceset

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestFaceMarkRecordRoundTrip(t *testing.T) {
	imgRef := uuid.New()
	cases := []struct {
		name string
		fm   FaceMark
	}{
		{"no refs no geometry", FaceMark{UUID: uuid.New()}},
		{"image ref only", FaceMark{UUID: uuid.New(), ImageUUID: &imgRef}},
		{"full", FaceMark{UUID: uuid.New(), ImageUUID: &imgRef, PersonUUID: &imgRef, Geometry: bytes.Repeat([]byte{0xab}, 300)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeFaceMarkRecord(tc.fm.encodeRecord())
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.UUID != tc.fm.UUID {
				t.Fatalf("uuid = %s, want %s", got.UUID, tc.fm.UUID)
			}
			if (got.ImageUUID == nil) != (tc.fm.ImageUUID == nil) {
				t.Fatalf("image ref presence = %v, want %v", got.ImageUUID != nil, tc.fm.ImageUUID != nil)
			}
			if got.ImageUUID != nil && *got.ImageUUID != *tc.fm.ImageUUID {
				t.Fatalf("image ref = %s, want %s", got.ImageUUID, tc.fm.ImageUUID)
			}
			if !bytes.Equal(got.Geometry, tc.fm.Geometry) {
				t.Fatalf("geometry mismatch: %d bytes vs %d", len(got.Geometry), len(tc.fm.Geometry))
			}
		})
	}
}

func TestFaceMarkRecordDecodeErrors(t *testing.T) {
	valid := (&FaceMark{UUID: uuid.New(), Geometry: []byte("geom")}).encodeRecord()

	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", []byte{faceMarkRecordVersion, 0x01}},
		{"bad version", append([]byte{0x7f}, valid[1:]...)},
		{"truncated geometry", valid[:len(valid)-2]},
		{"missing reference", func() []byte {
			fm := &FaceMark{UUID: uuid.New()}
			rec := fm.encodeRecord()
			rec[17] = flagImageRef // claim a reference that is not there
			return rec[:18]
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decodeFaceMarkRecord(tc.data); err == nil {
				t.Fatal("decode of malformed record succeeded")
			}
		})
	}
}
