package forest

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// gap is the spacing left between adjacent sibling positions so future
// mid-group insertions have room without renumbering (see spec §4.2/§9 — no
// rebalancing or mid-insert story is implemented, only the gap itself).
const gap = 1000

// nextPosition picks the position for a new last sibling under parentID
// (nil means "among the roots") within tenant: gap past the current maximum,
// or gap if there are no siblings yet.
func nextPosition(ctx context.Context, tx *gorm.DB, tenantID string, parentID *int64) (int64, error) {
	q := tx.WithContext(ctx).Table(table).Where("tenant_id = ?", tenantID)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}

	var max *int64
	if err := q.Select("MAX(pos)").Scan(&max).Error; err != nil {
		return 0, fmt.Errorf("select max sibling position: %w", err)
	}
	if max == nil {
		return gap, nil
	}
	return *max + gap, nil
}

// bulkAllocator assigns gap positions in memory for a bulk-load batch, keyed
// by parent id (nil key represents the root group), exactly mirroring the
// single-request allocator's sequence (gap, 2*gap, 3*gap, ...) but without a
// round-trip per node. It is only ever used within one transaction.
type bulkAllocator struct {
	counters map[int64]int64
	rootCtr  int64
	rootSeen bool
}

func newBulkAllocator() *bulkAllocator {
	return &bulkAllocator{counters: make(map[int64]int64)}
}

// next returns the next position for parentID (nil for root) and advances the
// counter for that group.
func (b *bulkAllocator) next(parentID *int64) int64 {
	if parentID == nil {
		if !b.rootSeen {
			b.rootCtr = gap
			b.rootSeen = true
		} else {
			b.rootCtr += gap
		}
		return b.rootCtr
	}
	cur, ok := b.counters[*parentID]
	if !ok {
		b.counters[*parentID] = gap
		return gap
	}
	cur += gap
	b.counters[*parentID] = cur
	return cur
}
