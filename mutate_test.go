package forest_test

import (
	"context"
	"os"
	"testing"

	"github.com/go-bumbu/testdbs"
	"gorm.io/gorm"

	"github.com/go-bumbu/forest"
)

func TestMain(m *testing.M) {
	testdbs.InitDBS()
	code := m.Run()
	_ = testdbs.Clean()
	os.Exit(code)
}

func newTestDB(t *testing.T, db testdbsConn, name string) *gorm.DB {
	t.Helper()
	conn := db.ConnDbName(name)
	if err := forest.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// testdbsConn mirrors the subset of testdbs.DBs()'s element type this
// package's tests exercise, so the rest of the file doesn't need to name the
// concrete type testdbs returns.
type testdbsConn interface {
	DbType() string
	ConnDbName(name string) *gorm.DB
}

func TestInsertRootAndChild(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			ctx := context.Background()

			rootID, err := forest.Insert(ctx, conn, "org1", "Electronics", nil)
			if err != nil {
				t.Fatalf("insert root: %v", err)
			}

			childID, err := forest.Insert(ctx, conn, "org1", "Mobile Phones", &rootID)
			if err != nil {
				t.Fatalf("insert child: %v", err)
			}

			var row forest.Node
			if err := conn.Table("tree_nodes").Where("id = ?", childID).First(&row).Error; err != nil {
				t.Fatalf("load child: %v", err)
			}
			if row.RootID != rootID {
				t.Errorf("child root_id = %d, want %d", row.RootID, rootID)
			}
			if row.Depth != 2 {
				t.Errorf("child depth = %d, want 2", row.Depth)
			}
			if len(row.PathIDs) != 2 || row.PathIDs[0] != rootID || row.PathIDs[1] != childID {
				t.Errorf("child path_ids = %v, want [%d %d]", row.PathIDs, rootID, childID)
			}
		})
	}
}

func TestInsertParentNotFound(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			missing := int64(999999)
			_, err := forest.Insert(context.Background(), conn, "org1", "X", &missing)
			if !forest.IsKind(err, forest.KindParentNotFound) {
				t.Fatalf("expected KindParentNotFound, got %v", err)
			}
		})
	}
}

func TestBulkLoadSimpleForest(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())

			p := func(v int64) *int64 { return &v }
			entries := []forest.BulkEntry{
				{ID: 1, Label: "A", ParentID: nil},
				{ID: 2, Label: "B", ParentID: p(1)},
				{ID: 3, Label: "C", ParentID: p(1)},
				{ID: 4, Label: "D", ParentID: p(3)},
			}

			created, err := forest.BulkLoad(context.Background(), conn, "org1", entries)
			if err != nil {
				t.Fatalf("bulk load: %v", err)
			}
			if created != 4 {
				t.Fatalf("created = %d, want 4", created)
			}

			var count int64
			conn.Table("tree_nodes").Where("tenant_id = ?", "org1").Count(&count)
			if count != 4 {
				t.Fatalf("row count = %d, want 4", count)
			}
		})
	}
}

func TestBulkLoadInvalidOrderRejected(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())

			p := func(v int64) *int64 { return &v }
			entries := []forest.BulkEntry{
				{ID: 1, Label: "A", ParentID: p(2)}, // references 2, declared later
				{ID: 2, Label: "B", ParentID: nil},
			}

			_, err := forest.BulkLoad(context.Background(), conn, "org1", entries)
			if !forest.IsKind(err, forest.KindBulkLoadInvalidOrder) {
				t.Fatalf("expected KindBulkLoadInvalidOrder, got %v", err)
			}

			var count int64
			conn.Table("tree_nodes").Where("tenant_id = ?", "org1").Count(&count)
			if count != 0 {
				t.Fatalf("expected no rows committed, got %d", count)
			}
		})
	}
}

func TestMoveWithDescendants(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			ctx := context.Background()

			p := func(v int64) *int64 { return &v }
			// 1 -> 2 -> {3, 4}, 1 -> 5
			entries := []forest.BulkEntry{
				{ID: 1, Label: "root"},
				{ID: 2, Label: "two", ParentID: p(1)},
				{ID: 3, Label: "three", ParentID: p(2)},
				{ID: 4, Label: "four", ParentID: p(2)},
				{ID: 5, Label: "five", ParentID: p(1)},
			}
			if _, err := forest.BulkLoad(ctx, conn, "org1", entries); err != nil {
				t.Fatalf("bulk load: %v", err)
			}

			target := int64(5)
			if err := forest.Move(ctx, conn, "org1", 2, &target); err != nil {
				t.Fatalf("move: %v", err)
			}

			var two, three forest.Node
			conn.Table("tree_nodes").Where("id = ?", 2).First(&two)
			conn.Table("tree_nodes").Where("id = ?", 3).First(&three)

			if two.RootID != 1 {
				t.Errorf("node 2 root_id = %d, want 1", two.RootID)
			}
			if *two.ParentID != 5 {
				t.Errorf("node 2 parent_id = %d, want 5", *two.ParentID)
			}
			wantPath := []int64{1, 5, 2}
			if len(three.PathIDs) < 3 || three.PathIDs[0] != wantPath[0] || three.PathIDs[1] != wantPath[1] || three.PathIDs[2] != wantPath[2] {
				t.Errorf("node 3 path_ids = %v, want prefix %v", three.PathIDs, wantPath)
			}
			if three.RootID != 1 {
				t.Errorf("node 3 root_id = %d, want 1", three.RootID)
			}
		})
	}
}

func TestMoveToRoot(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			ctx := context.Background()

			p := func(v int64) *int64 { return &v }
			entries := []forest.BulkEntry{
				{ID: 1, Label: "root"},
				{ID: 2, Label: "two", ParentID: p(1)},
				{ID: 3, Label: "three", ParentID: p(2)},
			}
			if _, err := forest.BulkLoad(ctx, conn, "org1", entries); err != nil {
				t.Fatalf("bulk load: %v", err)
			}

			if err := forest.Move(ctx, conn, "org1", 2, nil); err != nil {
				t.Fatalf("move to root: %v", err)
			}

			var two, three forest.Node
			conn.Table("tree_nodes").Where("id = ?", 2).First(&two)
			conn.Table("tree_nodes").Where("id = ?", 3).First(&three)

			if two.ParentID != nil {
				t.Errorf("node 2 parent_id = %v, want nil", *two.ParentID)
			}
			if two.RootID != 2 || two.Depth != 1 {
				t.Errorf("node 2 root_id/depth = %d/%d, want 2/1", two.RootID, two.Depth)
			}
			if three.RootID != 2 {
				t.Errorf("node 3 root_id = %d, want 2", three.RootID)
			}
			wantPath := []int64{2, 3}
			if len(three.PathIDs) != 2 || three.PathIDs[0] != wantPath[0] || three.PathIDs[1] != wantPath[1] {
				t.Errorf("node 3 path_ids = %v, want %v", three.PathIDs, wantPath)
			}
		})
	}
}

func TestMoveCycleRejected(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			ctx := context.Background()

			p := func(v int64) *int64 { return &v }
			entries := []forest.BulkEntry{
				{ID: 1, Label: "root"},
				{ID: 2, Label: "two", ParentID: p(1)},
				{ID: 3, Label: "three", ParentID: p(2)},
				{ID: 4, Label: "four", ParentID: p(2)},
			}
			if _, err := forest.BulkLoad(ctx, conn, "org1", entries); err != nil {
				t.Fatalf("bulk load: %v", err)
			}

			target := int64(4)
			err := forest.Move(ctx, conn, "org1", 2, &target)
			if !forest.IsKind(err, forest.KindCycleRejected) {
				t.Fatalf("expected KindCycleRejected, got %v", err)
			}
		})
	}
}

func TestCloneProducesDisjointSubtree(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			ctx := context.Background()

			p := func(v int64) *int64 { return &v }
			// 1 -> 2 -> {3, 4 -> 4a}
			entries := []forest.BulkEntry{
				{ID: 1, Label: "root"},
				{ID: 2, Label: "two", ParentID: p(1)},
				{ID: 3, Label: "three", ParentID: p(2)},
				{ID: 4, Label: "four", ParentID: p(2)},
				{ID: 40, Label: "four-a", ParentID: p(4)},
				{ID: 5, Label: "five", ParentID: p(1)},
			}
			if _, err := forest.BulkLoad(ctx, conn, "org1", entries); err != nil {
				t.Fatalf("bulk load: %v", err)
			}

			target := int64(5)
			newRootID, err := forest.Clone(ctx, conn, "org1", 2, &target)
			if err != nil {
				t.Fatalf("clone: %v", err)
			}
			if newRootID == 2 {
				t.Fatalf("clone returned original id")
			}

			var count int64
			conn.Table("tree_nodes").Where("tenant_id = ? AND root_id = ?", "org1", 1).Count(&count)
			// The clone sits under 5, so its 4 rows share root_id 1 with the
			// 6 untouched originals.
			if count != 10 {
				t.Errorf("tree row count = %d, want 10 (6 originals plus 4 clones)", count)
			}

			var newSubtree []forest.Node
			conn.Table("tree_nodes").Where("tenant_id = ?", "org1").Find(&newSubtree)
			found := 0
			for _, n := range newSubtree {
				if n.ID == newRootID || containsCloneID(n.PathIDs, newRootID) {
					found++
				}
			}
			if found != 4 {
				t.Errorf("clone subtree size = %d, want 4", found)
			}
		})
	}
}

func containsCloneID(pathIDs []int64, id int64) bool {
	for _, v := range pathIDs {
		if v == id {
			return true
		}
	}
	return false
}

func TestDeleteTenantIsolation(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			ctx := context.Background()

			if _, err := forest.Insert(ctx, conn, "org1", "A", nil); err != nil {
				t.Fatalf("insert org1: %v", err)
			}
			if _, err := forest.Insert(ctx, conn, "org2", "B", nil); err != nil {
				t.Fatalf("insert org2: %v", err)
			}

			if err := forest.DeleteTenant(ctx, conn, "org1"); err != nil {
				t.Fatalf("delete tenant: %v", err)
			}

			var org1Count, org2Count int64
			conn.Table("tree_nodes").Where("tenant_id = ?", "org1").Count(&org1Count)
			conn.Table("tree_nodes").Where("tenant_id = ?", "org2").Count(&org2Count)
			if org1Count != 0 {
				t.Errorf("org1 count = %d, want 0", org1Count)
			}
			if org2Count != 1 {
				t.Errorf("org2 count = %d, want 1", org2Count)
			}
		})
	}
}
