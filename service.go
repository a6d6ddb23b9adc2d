package forest

import (
	"context"
	"strconv"

	"gorm.io/gorm"
)

// DefaultTenant is used whenever a caller supplies no tenant id.
const DefaultTenant = "default"

// Service binds the package's free functions to one *gorm.DB and applies
// tenant defaulting, matching the teacher's Tree type as the single façade
// callers hold onto — see spec §4.5.
type Service struct {
	db *gorm.DB
}

// NewService wraps db, which must already have Migrate applied.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func resolveTenant(tenantID string) string {
	if tenantID == "" {
		return DefaultTenant
	}
	return tenantID
}

// parseNodeID parses a wire-level string id back to int64, failing with the
// same Internal kind the rest of the package uses for malformed persisted
// state — a malformed id here means the caller tampered with an opaque
// string this service itself produced.
func parseNodeID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, newError(KindInternal, "malformed node id %q", s)
	}
	return id, nil
}

// CreatedNode is the Service-level view of a freshly inserted node.
type CreatedNode struct {
	ID       string
	Label    string
	ParentID *string
}

// Insert creates one node under parentID (nil for a new root).
func (s *Service) Insert(ctx context.Context, tenantID, label string, parentID *string) (CreatedNode, error) {
	tenantID = resolveTenant(tenantID)

	var pid *int64
	if parentID != nil {
		id, err := parseNodeID(*parentID)
		if err != nil {
			return CreatedNode{}, err
		}
		pid = &id
	}

	newID, err := Insert(ctx, s.db, tenantID, label, pid)
	if err != nil {
		return CreatedNode{}, err
	}

	return CreatedNode{
		ID:       strconv.FormatInt(newID, 10),
		Label:    label,
		ParentID: parentID,
	}, nil
}

// BulkInput is the Service-level view of one bulk-load entry; string ids as
// they arrive over the wire.
type BulkInput struct {
	ID       string
	Label    string
	ParentID *string
	RootID   *string
}

// BulkLoad loads entries in order within tenant and returns the count created.
func (s *Service) BulkLoad(ctx context.Context, tenantID string, entries []BulkInput) (int, error) {
	tenantID = resolveTenant(tenantID)

	parsed := make([]BulkEntry, 0, len(entries))
	for _, e := range entries {
		id, err := parseNodeID(e.ID)
		if err != nil {
			return 0, err
		}

		var pid *int64
		if e.ParentID != nil {
			p, err := parseNodeID(*e.ParentID)
			if err != nil {
				return 0, err
			}
			pid = &p
		}

		var rid *int64
		if e.RootID != nil {
			r, err := parseNodeID(*e.RootID)
			if err != nil {
				return 0, err
			}
			rid = &r
		}

		parsed = append(parsed, BulkEntry{ID: id, Label: e.Label, ParentID: pid, RootID: rid})
	}

	return BulkLoad(ctx, s.db, tenantID, parsed)
}

// Move relocates sourceID to be a child of targetID (nil promotes to root).
func (s *Service) Move(ctx context.Context, tenantID, sourceID string, targetID *string) error {
	tenantID = resolveTenant(tenantID)

	src, err := parseNodeID(sourceID)
	if err != nil {
		return err
	}
	var tgt *int64
	if targetID != nil {
		t, err := parseNodeID(*targetID)
		if err != nil {
			return err
		}
		tgt = &t
	}

	return Move(ctx, s.db, tenantID, src, tgt)
}

// Clone duplicates sourceID's subtree under targetID (nil clones as a new
// root) and returns the new root id as a string.
func (s *Service) Clone(ctx context.Context, tenantID, sourceID string, targetID *string) (string, error) {
	tenantID = resolveTenant(tenantID)

	src, err := parseNodeID(sourceID)
	if err != nil {
		return "", err
	}
	var tgt *int64
	if targetID != nil {
		t, err := parseNodeID(*targetID)
		if err != nil {
			return "", err
		}
		tgt = &t
	}

	newID, err := Clone(ctx, s.db, tenantID, src, tgt)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(newID, 10), nil
}

// DeleteTenant wipes every node belonging to tenant.
func (s *Service) DeleteTenant(ctx context.Context, tenantID string) error {
	return DeleteTenant(ctx, s.db, resolveTenant(tenantID))
}

// Forest renders tenant's entire forest as a JSON-encoded byte string, per
// the Forest Materializer contract in spec §4.3.
func (s *Service) Forest(ctx context.Context, tenantID string) (string, error) {
	return GetForest(ctx, s.db, resolveTenant(tenantID))
}
