package forest

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// signBit masks the uint64 read from a UUID's first 8 bytes down to its low 63
// bits so the result always fits in a positive int64 — the column type every
// dialect here uses for id.
const signBit = 1<<63 - 1

// newNodeID draws a random 63-bit id and retries on the (astronomically
// unlikely) chance it already exists for this tenant. The teacher's
// auto-increment NodeId doesn't carry across a move/clone's id remapping
// requirements, so ids here are opaque and assigned client-of-the-DB side,
// the same way original_source's insert_node used uuid4().int & 0x7FFF....
func newNodeID(ctx context.Context, tx *gorm.DB, tenantID string) (int64, error) {
	for attempt := 0; attempt < 10; attempt++ {
		u := uuid.New()
		id := int64(binary.BigEndian.Uint64(u[:8])) & signBit
		if id == 0 {
			continue
		}

		var count int64
		err := tx.WithContext(ctx).Table(table).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			Count(&count).Error
		if err != nil {
			return 0, fmt.Errorf("check id uniqueness: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return 0, newError(KindInternal, "could not allocate a unique node id after 10 attempts")
}
