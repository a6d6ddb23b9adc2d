package forest_test

import (
	"context"
	"fmt"
	"os"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/go-bumbu/forest"
)

// getExampleDB opens a fresh file-backed sqlite database named after the
// calling example, the same scheme the teacher's own example tests use to
// keep godoc examples isolated from one another.
func getExampleDB(name string) *gorm.DB {
	dbFile := "./" + name + ".example.sqlite"
	if _, err := os.Stat(dbFile); err == nil {
		if err := os.Remove(dbFile); err != nil {
			panic(err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}
	if err := forest.Migrate(db); err != nil {
		panic(err)
	}
	return db
}

func ExampleService_Insert() {
	svc := forest.NewService(getExampleDB("insert"))
	ctx := context.Background()

	root, err := svc.Insert(ctx, "acme", "Electronics", nil)
	if err != nil {
		panic(err)
	}
	child, err := svc.Insert(ctx, "acme", "Mobile Phones", &root.ID)
	if err != nil {
		panic(err)
	}

	fmt.Println(child.Label)
	// Output: Mobile Phones
}

func ExampleService_Forest() {
	svc := forest.NewService(getExampleDB("forest"))
	ctx := context.Background()

	// BulkLoad takes caller-supplied ids, making this example's output
	// deterministic; Insert (see ExampleService_Insert) assigns opaque
	// random ids instead.
	p := func(v string) *string { return &v }
	_, err := svc.BulkLoad(ctx, "acme", []forest.BulkInput{
		{ID: "1", Label: "colors"},
		{ID: "2", Label: "warm", ParentID: p("1")},
	})
	if err != nil {
		panic(err)
	}

	doc, err := svc.Forest(ctx, "acme")
	if err != nil {
		panic(err)
	}

	fmt.Println(doc)
	// Output: [{"id":"1","label":"colors","children":[{"id":"2","label":"warm","children":[]}]}]
}
