package faceset

import (
	"context"

	"github.com/google/uuid"

	"github.com/msomdec/faceset/internal/sqlite"
)

// DanglingRef names a face mark whose reference resolves to no stored
// row, and the missing target UUID.
type DanglingRef struct {
	FaceMarkUUID uuid.UUID
	TargetUUID   uuid.UUID
}

// IntegrityReport lists references that no longer resolve. Dangling
// references are legal — deletes never cascade — so the report is
// informational; nothing is repaired.
type IntegrityReport struct {
	DanglingImageRefs  []DanglingRef
	DanglingPersonRefs []DanglingRef
}

// Clean reports whether every stored reference resolves.
func (r *IntegrityReport) Clean() bool {
	return len(r.DanglingImageRefs) == 0 && len(r.DanglingPersonRefs) == 0
}

// CheckIntegrity scans face marks for references to images and persons
// that do not exist.
func (fs *Faceset) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.db == nil {
		return nil, ErrClosed
	}

	imageRefs, err := fs.marks.DanglingImageRefs(ctx)
	if err != nil {
		return nil, storageError("check image references", err)
	}
	personRefs, err := fs.marks.DanglingPersonRefs(ctx)
	if err != nil {
		return nil, storageError("check person references", err)
	}

	return &IntegrityReport{
		DanglingImageRefs:  toDanglingRefs(imageRefs),
		DanglingPersonRefs: toDanglingRefs(personRefs),
	}, nil
}

func toDanglingRefs(rows []sqlite.DanglingRef) []DanglingRef {
	refs := make([]DanglingRef, 0, len(rows))
	for _, row := range rows {
		var ref DanglingRef
		copy(ref.FaceMarkUUID[:], row.FaceMarkUUID)
		copy(ref.TargetUUID[:], row.TargetUUID)
		refs = append(refs, ref)
	}
	return refs
}
