package forest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxLabelJSONBytes bounds label_json per invariant 5.
const maxLabelJSONBytes = 1_048_576

// encodeLabel pre-encodes label as a JSON string literal and enforces the
// size bound, matching original_source's MAX_LABEL_JSON_SIZE check.
func encodeLabel(label string) (string, error) {
	b, err := json.Marshal(label)
	if err != nil {
		return "", newError(KindLabelEncoding, "label could not be encoded as JSON: %v", err)
	}
	if len(b) > maxLabelJSONBytes {
		return "", newError(KindLabelTooLarge, "label_json is %d bytes, exceeds limit of %d", len(b), maxLabelJSONBytes)
	}
	return string(b), nil
}

// touchRoot bumps a root's updated_at so forest ordering reflects recent
// activity, per spec §4.3 step 1 / §4.4.1 step 5.
func touchRoot(ctx context.Context, tx *gorm.DB, tenantID string, rootID int64) error {
	err := tx.WithContext(ctx).Table(table).
		Where("tenant_id = ? AND id = ?", tenantID, rootID).
		Update("updated_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("touch root %d: %w", rootID, err)
	}
	return nil
}

// Insert creates one node under parentID (nil for a new root) within tenant,
// per spec §4.4.1. Returns the new node's id.
func Insert(ctx context.Context, db *gorm.DB, tenantID string, label string, parentID *int64) (int64, error) {
	labelJSON, err := encodeLabel(label)
	if err != nil {
		return 0, err
	}

	var newID int64
	txErr := db.Transaction(func(tx *gorm.DB) error {
		id, err := newNodeID(ctx, tx, tenantID)
		if err != nil {
			return err
		}

		var anc anchor
		if parentID == nil {
			pos, err := nextPosition(ctx, tx, tenantID, nil)
			if err != nil {
				return err
			}
			anc = deriveForRoot(id, pos)
		} else {
			var parent Node
			err := tx.WithContext(ctx).Table(table).
				Where("tenant_id = ? AND id = ?", tenantID, *parentID).
				First(&parent).Error
			if err == gorm.ErrRecordNotFound {
				return newError(KindParentNotFound, "parent %d not found in tenant %q", *parentID, tenantID)
			}
			if err != nil {
				return fmt.Errorf("load parent: %w", err)
			}

			pos, err := nextPosition(ctx, tx, tenantID, parentID)
			if err != nil {
				return err
			}
			parentAnc := anchor{
				rootID:  parent.RootID,
				pathIDs: parent.PathIDs,
				pathPos: parent.PathPos,
				depth:   parent.Depth,
			}
			anc, err = deriveForChild(parentAnc, id, pos)
			if err != nil {
				return err
			}
		}

		row := Node{
			ID:         id,
			TenantID:   tenantID,
			RootID:     anc.rootID,
			ParentID:   parentID,
			Label:      label,
			LabelJSON:  labelJSON,
			Pos:        anc.pathPos[len(anc.pathPos)-1],
			PathIDs:    Int64Slice(anc.pathIDs),
			PathPos:    Int64Slice(anc.pathPos),
			PathPosKey: encodePathPosKey(anc.pathPos),
			Depth:      anc.depth,
		}
		if err := tx.WithContext(ctx).Table(table).Create(&row).Error; err != nil {
			return fmt.Errorf("insert node: %w", err)
		}

		if parentID != nil {
			if err := touchRoot(ctx, tx, tenantID, anc.rootID); err != nil {
				return err
			}
		}

		newID = id
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}
	return newID, nil
}

// BulkEntry is one input row for BulkLoad. RootID mirrors the wire schema's
// optional root-id hint but is never consulted: under the rejection policy
// this package implements (see BulkLoad), a node's root is always derived
// from an in-batch or already-persisted parent, never taken on faith from
// the caller.
type BulkEntry struct {
	ID       int64
	Label    string
	ParentID *int64
	RootID   *int64
}

// BulkLoad loads an ordered batch of nodes in one transaction, per spec
// §4.4.2. Every entry's parentId must be null, or reference an entry earlier
// in the batch, or an id already present in the tenant — any forward or
// unknown reference fails the whole batch with BulkLoadInvalidOrder (the
// "safer design" resolution of the out-of-order-parents open question
// recorded in DESIGN.md, rather than the base spec's best-effort root
// fallback).
func BulkLoad(ctx context.Context, db *gorm.DB, tenantID string, entries []BulkEntry) (int, error) {
	seen := make(map[int64]anchor, len(entries))
	alloc := newBulkAllocator()
	rows := make([]Node, 0, len(entries))
	now := time.Now()

	txErr := db.Transaction(func(tx *gorm.DB) error {
		for _, e := range entries {
			labelJSON, err := encodeLabel(e.Label)
			if err != nil {
				return err
			}

			var anc anchor
			pos := alloc.next(e.ParentID)

			switch {
			case e.ParentID == nil:
				anc = deriveForRoot(e.ID, pos)
			default:
				parentAnc, ok := seen[*e.ParentID]
				if !ok {
					var existing Node
					err := tx.WithContext(ctx).Table(table).
						Where("tenant_id = ? AND id = ?", tenantID, *e.ParentID).
						First(&existing).Error
					if err == gorm.ErrRecordNotFound {
						return newError(KindBulkLoadInvalidOrder,
							"entry %d references parent %d which is neither earlier in the batch nor already present in tenant %q",
							e.ID, *e.ParentID, tenantID)
					}
					if err != nil {
						return fmt.Errorf("load existing parent %d: %w", *e.ParentID, err)
					}
					parentAnc = anchor{
						rootID:  existing.RootID,
						pathIDs: existing.PathIDs,
						pathPos: existing.PathPos,
						depth:   existing.Depth,
					}
				}
				anc, err = deriveForChild(parentAnc, e.ID, pos)
				if err != nil {
					return err
				}
			}

			seen[e.ID] = anc
			rows = append(rows, Node{
				ID:         e.ID,
				TenantID:   tenantID,
				RootID:     anc.rootID,
				ParentID:   e.ParentID,
				Label:      e.Label,
				LabelJSON:  labelJSON,
				Pos:        anc.pathPos[len(anc.pathPos)-1],
				PathIDs:    Int64Slice(anc.pathIDs),
				PathPos:    Int64Slice(anc.pathPos),
				PathPosKey: encodePathPosKey(anc.pathPos),
				Depth:      anc.depth,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}

		if len(rows) > 0 {
			if err := tx.WithContext(ctx).Table(table).Create(&rows).Error; err != nil {
				return fmt.Errorf("bulk insert: %w", err)
			}
		}

		touched := make(map[int64]bool)
		for _, r := range rows {
			if r.ParentID != nil {
				touched[r.RootID] = true
			}
		}
		for rootID := range touched {
			if err := touchRoot(ctx, tx, tenantID, rootID); err != nil {
				return err
			}
		}

		return nil
	})
	if txErr != nil {
		return 0, txErr
	}
	return len(rows), nil
}

// Move relocates the subtree rooted at sourceID to become a child of
// targetID (nil promotes it to a new root), per spec §4.4.3.
func Move(ctx context.Context, db *gorm.DB, tenantID string, sourceID int64, targetID *int64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var source Node
		err := tx.WithContext(ctx).Table(table).
			Where("tenant_id = ? AND id = ?", tenantID, sourceID).
			First(&source).Error
		if err == gorm.ErrRecordNotFound {
			return newError(KindSourceNotFound, "source %d not found in tenant %q", sourceID, tenantID)
		}
		if err != nil {
			return fmt.Errorf("load source: %w", err)
		}

		oldRootID := source.RootID
		var newAnc anchor
		var newParentID *int64

		if targetID == nil {
			pos, err := nextPosition(ctx, tx, tenantID, nil)
			if err != nil {
				return err
			}
			newAnc = deriveForRoot(sourceID, pos)
			newParentID = nil
		} else {
			var target Node
			err := tx.WithContext(ctx).Table(table).
				Where("tenant_id = ? AND id = ?", tenantID, *targetID).
				First(&target).Error
			if err == gorm.ErrRecordNotFound {
				return newError(KindTargetNotFound, "target %d not found in tenant %q", *targetID, tenantID)
			}
			if err != nil {
				return fmt.Errorf("load target: %w", err)
			}
			if containsID(target.PathIDs, sourceID) {
				return newError(KindCycleRejected, "cannot move %d under its own descendant %d", sourceID, *targetID)
			}

			pos, err := nextPosition(ctx, tx, tenantID, targetID)
			if err != nil {
				return err
			}
			targetAnc := anchor{
				rootID:  target.RootID,
				pathIDs: target.PathIDs,
				pathPos: target.PathPos,
				depth:   target.Depth,
			}
			newAnc, err = deriveForChild(targetAnc, sourceID, pos)
			if err != nil {
				return err
			}
			newParentID = targetID
		}

		var descendants []Node
		err = tx.WithContext(ctx).Table(table).
			Where("tenant_id = ? AND root_id = ? AND id <> ?", tenantID, oldRootID, sourceID).
			Find(&descendants).Error
		if err != nil {
			return fmt.Errorf("load descendants: %w", err)
		}
		var toUpdate []Node
		for _, d := range descendants {
			if !containsID(d.PathIDs, sourceID) {
				continue
			}
			rewritten, err := rewriteDescendant(d.PathIDs, d.PathPos, sourceID, newAnc)
			if err != nil {
				return err
			}
			d.RootID = rewritten.rootID
			d.PathIDs = Int64Slice(rewritten.pathIDs)
			d.PathPos = Int64Slice(rewritten.pathPos)
			d.PathPosKey = encodePathPosKey(rewritten.pathPos)
			d.Depth = rewritten.depth
			toUpdate = append(toUpdate, d)
		}

		err = tx.WithContext(ctx).Table(table).
			Where("tenant_id = ? AND id = ?", tenantID, sourceID).
			Updates(map[string]any{
				"root_id":      newAnc.rootID,
				"parent_id":    newParentID,
				"pos":          newAnc.pathPos[len(newAnc.pathPos)-1],
				"path_ids":     Int64Slice(newAnc.pathIDs),
				"path_pos":     Int64Slice(newAnc.pathPos),
				"path_pos_key": encodePathPosKey(newAnc.pathPos),
				"depth":        newAnc.depth,
			}).Error
		if err != nil {
			return fmt.Errorf("update source: %w", err)
		}

		if len(toUpdate) > 0 {
			err := tx.WithContext(ctx).Table(table).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{"root_id", "path_ids", "path_pos", "path_pos_key", "depth"}),
				}).
				Create(&toUpdate).Error
			if err != nil {
				return fmt.Errorf("update descendants: %w", err)
			}
		}

		if err := touchRoot(ctx, tx, tenantID, newAnc.rootID); err != nil {
			return err
		}
		if oldRootID != newAnc.rootID {
			if err := touchRoot(ctx, tx, tenantID, oldRootID); err != nil {
				return err
			}
		}

		return nil
	})
}

// Clone duplicates the subtree rooted at sourceID under targetID (nil clones
// it as a new root), per spec §4.4.4, returning the clone's new root id.
func Clone(ctx context.Context, db *gorm.DB, tenantID string, sourceID int64, targetID *int64) (int64, error) {
	var newRootID int64

	txErr := db.Transaction(func(tx *gorm.DB) error {
		var source Node
		err := tx.WithContext(ctx).Table(table).
			Where("tenant_id = ? AND id = ?", tenantID, sourceID).
			First(&source).Error
		if err == gorm.ErrRecordNotFound {
			return newError(KindSourceNotFound, "source %d not found in tenant %q", sourceID, tenantID)
		}
		if err != nil {
			return fmt.Errorf("load source: %w", err)
		}

		var targetAnc *anchor
		var newParentID *int64
		if targetID != nil {
			var target Node
			err := tx.WithContext(ctx).Table(table).
				Where("tenant_id = ? AND id = ?", tenantID, *targetID).
				First(&target).Error
			if err == gorm.ErrRecordNotFound {
				return newError(KindTargetNotFound, "target %d not found in tenant %q", *targetID, tenantID)
			}
			if err != nil {
				return fmt.Errorf("load target: %w", err)
			}
			a := anchor{
				rootID:  target.RootID,
				pathIDs: target.PathIDs,
				pathPos: target.PathPos,
				depth:   target.Depth,
			}
			targetAnc = &a
			newParentID = targetID
		}

		var subtree []Node
		err = tx.WithContext(ctx).Table(table).
			Where("tenant_id = ? AND (id = ? OR root_id = ?)", tenantID, sourceID, source.RootID).
			Find(&subtree).Error
		if err != nil {
			return fmt.Errorf("load subtree: %w", err)
		}
		var filtered []Node
		for _, n := range subtree {
			if n.ID == sourceID || containsID(n.PathIDs, sourceID) {
				filtered = append(filtered, n)
			}
		}
		subtree = filtered

		sort.Slice(subtree, func(i, j int) bool { return subtree[i].Depth < subtree[j].Depth })

		idMap := make(map[int64]int64, len(subtree))
		for _, n := range subtree {
			newID, err := newNodeID(ctx, tx, tenantID)
			if err != nil {
				return err
			}
			idMap[n.ID] = newID
		}

		rows := make([]Node, 0, len(subtree))
		ancByOrigID := make(map[int64]anchor, len(subtree))
		now := time.Now()
		for _, n := range subtree {
			newID := idMap[n.ID]

			var anc anchor
			var parentID *int64
			if n.ID == sourceID {
				var pos int64
				if targetAnc != nil {
					pos, err = nextPosition(ctx, tx, tenantID, targetID)
					if err != nil {
						return err
					}
					anc, err = deriveForChild(*targetAnc, newID, pos)
					if err != nil {
						return err
					}
					parentID = newParentID
				} else {
					pos, err = nextPosition(ctx, tx, tenantID, nil)
					if err != nil {
						return err
					}
					anc = deriveForRoot(newID, pos)
					parentID = nil
				}
				newRootID = anc.rootID
			} else {
				origParentID := *n.ParentID
				parentAnc, ok := ancByOrigID[origParentID]
				if !ok {
					return newError(KindInternal, "clone: parent %d of %d processed out of depth order", origParentID, n.ID)
				}
				// Interior nodes keep their original pos relative to their new
				// parent, per spec §4.4.4 step 5.
				anc, err = deriveForChild(parentAnc, newID, n.Pos)
				if err != nil {
					return err
				}
				p := idMap[origParentID]
				parentID = &p
			}
			ancByOrigID[n.ID] = anc

			rows = append(rows, Node{
				ID:         newID,
				TenantID:   tenantID,
				RootID:     anc.rootID,
				ParentID:   parentID,
				Label:      n.Label,
				LabelJSON:  n.LabelJSON,
				Pos:        anc.pathPos[len(anc.pathPos)-1],
				PathIDs:    Int64Slice(anc.pathIDs),
				PathPos:    Int64Slice(anc.pathPos),
				PathPosKey: encodePathPosKey(anc.pathPos),
				Depth:      anc.depth,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}

		if err := tx.WithContext(ctx).Table(table).Create(&rows).Error; err != nil {
			return fmt.Errorf("insert clone: %w", err)
		}

		if err := touchRoot(ctx, tx, tenantID, newRootID); err != nil {
			return err
		}

		return nil
	})
	if txErr != nil {
		return 0, txErr
	}
	return newRootID, nil
}

// DeleteTenant removes every node belonging to tenant, per spec §4.4.5, with
// one DELETE over all rows whose tenant_id matches; the parent_id foreign
// key's ON DELETE CASCADE also removes descendants of any row deleted here.
func DeleteTenant(ctx context.Context, db *gorm.DB, tenantID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		err := tx.WithContext(ctx).Table(table).
			Where("tenant_id = ?", tenantID).
			Delete(&Node{}).Error
		if err != nil {
			return fmt.Errorf("delete tenant %q: %w", tenantID, err)
		}
		return nil
	})
}
