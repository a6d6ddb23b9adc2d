package forest

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// table is the single table backing every tenant's forest.
const table = "tree_nodes"

// maxDepth is the largest depth a node may reach, matching the int16 column bound.
const maxDepth = 32767

// posKeyWidth is the zero-padded digit width used to build path_pos_key, wide
// enough to hold any non-negative int64.
const posKeyWidth = 20

// Int64Slice is a []int64 persisted as compact JSON text. GORM/database drivers
// have no portable native array type across sqlite/mysql/postgres, so path_ids
// and path_pos round-trip through this Scanner/Valuer instead.
type Int64Slice []int64

// Value implements driver.Valuer.
func (s Int64Slice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int64(s))
	if err != nil {
		return nil, fmt.Errorf("encode int64 slice: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *Int64Slice) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("int64 slice: unsupported scan type %T", src)
	}
	var out []int64
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode int64 slice: %w", err)
	}
	*s = out
	return nil
}

// GormDataType tells GORM's migrator to treat this as text across dialects.
func (Int64Slice) GormDataType() string {
	return "text"
}

// Node is a single row of the tree_nodes table; see spec §3 for the field-level
// invariants this type exists to uphold.
type Node struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement:false"`
	TenantID   string     `gorm:"column:tenant_id;not null;index:idx_tenant_root,priority:1"`
	RootID     int64      `gorm:"column:root_id;not null;index:idx_root_updated,priority:1;index:idx_root_pathpos,priority:1"`
	ParentID   *int64     `gorm:"column:parent_id;index:idx_parent_pos,priority:1;constraint:OnDelete:CASCADE"`
	Label      string     `gorm:"column:label;not null"`
	LabelJSON  string     `gorm:"column:label_json;not null"`
	Pos        int64      `gorm:"column:pos;not null;index:idx_parent_pos,priority:2"`
	PathIDs    Int64Slice `gorm:"column:path_ids;type:text;not null"`
	PathPos    Int64Slice `gorm:"column:path_pos;type:text;not null"`
	PathPosKey string     `gorm:"column:path_pos_key;not null;index:idx_root_pathpos,priority:2"`
	Depth      int16      `gorm:"column:depth;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime;index:idx_root_updated,priority:2"`

	Parent *Node `gorm:"foreignKey:ParentID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName pins the model to the fixed table name regardless of GORM's
// pluralization rules.
func (Node) TableName() string {
	return table
}

// encodePathPosKey builds the sortable string described in SPEC_FULL.md §3:
// each position zero-padded to posKeyWidth digits, joined with '.'. Because
// every allocated position is non-negative (see posalloc.go), plain
// lexicographic (byte) ordering of this string is equal to the integer-sequence
// lexicographic ordering invariant 4 requires.
func encodePathPosKey(pathPos []int64) string {
	parts := make([]string, len(pathPos))
	for i, p := range pathPos {
		parts[i] = fmt.Sprintf("%0*d", posKeyWidth, p)
	}
	return strings.Join(parts, ".")
}

// Migrate creates tree_nodes and its indexes/constraints if they do not exist
// yet. Constraints AutoMigrate cannot express portably across dialects are
// applied afterward with raw DDL, the same way the teacher issues raw SQL for
// anything beyond what GORM tags cover.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Node{}); err != nil {
		return fmt.Errorf("migrate tree_nodes: %w", err)
	}

	dialect := db.Name()
	var checks []string
	switch dialect {
	case "sqlite":
		// SQLite only accepts CHECK constraints at table-creation time; adding
		// them post hoc requires a rebuild it does not support via ALTER TABLE.
		// AutoMigrate above already created the table without them, so on
		// sqlite these are best-effort and only enforced application-side.
	case "mysql":
		checks = []string{
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT chk_depth_range CHECK (depth BETWEEN 1 AND 32767)", table),
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT chk_label_json_nonempty CHECK (label_json <> '')", table),
		}
	default: // postgres
		checks = []string{
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT chk_depth_range CHECK (depth BETWEEN 1 AND 32767)", table),
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT chk_label_json_nonempty CHECK (label_json <> '')", table),
		}
	}

	for _, stmt := range checks {
		if err := db.Exec(stmt).Error; err != nil {
			// constraint already present from a prior migration run
			if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "Duplicate") {
				continue
			}
			return fmt.Errorf("apply constraint: %w", err)
		}
	}
	return nil
}
