package stores_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	dir, err := os.MkdirTemp("", "plasma-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            filepath.Join(dir, "plasma.db"),
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_WithTx demonstrates registering a worker and a storage
// cell in one transaction.
func ExampleSQLiteStore_WithTx() {
	dir, _ := os.MkdirTemp("", "plasma-example")
	defer os.RemoveAll(dir)

	store, _ := stores.NewSQLiteStore(stores.Config{Path: filepath.Join(dir, "plasma.db")})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	err := store.WithTx(ctx, func(tx stores.Tx) error {
		if err := tx.InsertWorker(ctx, &model.Worker{Name: "Ivanov", Job: model.JobOperator, IsActive: true}); err != nil {
			return err
		}
		return tx.InsertStorageCell(ctx, &model.StorageCell{Name: "A-01"})
	})
	if err != nil {
		log.Fatal(err)
	}

	_ = store.WithTx(ctx, func(tx stores.Tx) error {
		workers, _ := tx.ListWorkers(ctx, true)
		cells, _ := tx.ListStorageCells(ctx)
		fmt.Printf("%d worker(s), %d cell(s)\n", len(workers), len(cells))
		return nil
	})
	// Output: 1 worker(s), 1 cell(s)
}
