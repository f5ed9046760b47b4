package app

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenStoreDefaultsToSQLite(t *testing.T) {
	dir := t.TempDir()

	store, closeStore, err := openStore(context.Background(), Config{
		DBPath: filepath.Join(dir, "nested", "items.db"),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if store == nil {
		t.Fatal("expected a store")
	}
	if err := closeStore(); err != nil {
		t.Fatalf("close store: %v", err)
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, _, err := openStore(context.Background(), Config{StorageDriver: "bbolt"})
	if err == nil {
		t.Fatal("expected an error for an unknown driver")
	}
}

func TestOpenStoreURLImpliesPostgres(t *testing.T) {
	// An unreachable URL must still route to the postgres backend and fail
	// there rather than fall back to sqlite.
	_, _, err := openStore(context.Background(), Config{
		DatabaseURL: "postgres://localhost:1/items?sslmode=disable&connect_timeout=1",
	})
	if err == nil {
		t.Fatal("expected a connection error")
	}
}
