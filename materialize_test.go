package forest_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/go-bumbu/testdbs"

	"github.com/go-bumbu/forest"
)

func TestGetForestEmptyTenant(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			doc, err := forest.GetForest(context.Background(), conn, "empty-tenant")
			if err != nil {
				t.Fatalf("GetForest: %v", err)
			}
			if doc != "[]" {
				t.Fatalf("GetForest() = %q, want \"[]\"", doc)
			}
		})
	}
}

func TestGetForestSingleNode(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			ctx := context.Background()
			id, err := forest.Insert(ctx, conn, "org1", "solo", nil)
			if err != nil {
				t.Fatalf("insert: %v", err)
			}

			doc, err := forest.GetForest(ctx, conn, "org1")
			if err != nil {
				t.Fatalf("GetForest: %v", err)
			}

			want := `[{"id":"` + strconv.FormatInt(id, 10) + `","label":"solo","children":[]}]`
			if doc != want {
				t.Fatalf("GetForest() = %q, want %q", doc, want)
			}
		})
	}
}

func TestGetForestSimpleForestShape(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			ctx := context.Background()

			p := func(v int64) *int64 { return &v }
			entries := []forest.BulkEntry{
				{ID: 1, Label: "A"},
				{ID: 2, Label: "B", ParentID: p(1)},
				{ID: 3, Label: "C", ParentID: p(1)},
				{ID: 4, Label: "D", ParentID: p(3)},
			}
			if _, err := forest.BulkLoad(ctx, conn, "org1", entries); err != nil {
				t.Fatalf("bulk load: %v", err)
			}

			doc, err := forest.GetForest(ctx, conn, "org1")
			if err != nil {
				t.Fatalf("GetForest: %v", err)
			}

			want := `[{"id":"1","label":"A","children":[` +
				`{"id":"2","label":"B","children":[]},` +
				`{"id":"3","label":"C","children":[{"id":"4","label":"D","children":[]}]}` +
				`]}]`
			if doc != want {
				t.Fatalf("GetForest() =\n%s\nwant\n%s", doc, want)
			}
		})
	}
}

func TestGetForestDeepChain(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			ctx := context.Background()

			p := func(v int64) *int64 { return &v }
			entries := []forest.BulkEntry{
				{ID: 1, Label: "L1"},
				{ID: 2, Label: "L2", ParentID: p(1)},
				{ID: 3, Label: "L3", ParentID: p(2)},
				{ID: 4, Label: "L4", ParentID: p(3)},
				{ID: 5, Label: "L5", ParentID: p(4)},
			}
			if _, err := forest.BulkLoad(ctx, conn, "org1", entries); err != nil {
				t.Fatalf("bulk load: %v", err)
			}

			doc, err := forest.GetForest(ctx, conn, "org1")
			if err != nil {
				t.Fatalf("GetForest: %v", err)
			}

			want := `[{"id":"1","label":"L1","children":[{"id":"2","label":"L2","children":[` +
				`{"id":"3","label":"L3","children":[{"id":"4","label":"L4","children":[` +
				`{"id":"5","label":"L5","children":[]}]}]}]}]}]`
			if doc != want {
				t.Fatalf("GetForest() =\n%s\nwant\n%s", doc, want)
			}
		})
	}
}

func TestGetForestTenantIsolation(t *testing.T) {
	for _, db := range testdbs.DBs() {
		db := db
		t.Run(db.DbType(), func(t *testing.T) {
			conn := newTestDB(t, db, t.Name())
			ctx := context.Background()

			if _, err := forest.Insert(ctx, conn, "org1", "A", nil); err != nil {
				t.Fatalf("insert: %v", err)
			}

			doc, err := forest.GetForest(ctx, conn, "org2")
			if err != nil {
				t.Fatalf("GetForest: %v", err)
			}
			if doc != "[]" {
				t.Fatalf("org2 forest = %q, want \"[]\"", doc)
			}
		})
	}
}
