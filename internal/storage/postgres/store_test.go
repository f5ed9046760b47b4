package postgres

import (
	"context"
	"testing"

	"github.com/plantworks/manufacturing/internal/platform/grpc/pagination"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"WHERE id = ?", "WHERE id = $1"},
		{"VALUES (?, ?, ?)", "VALUES ($1, $2, $3)"},
	}
	for _, tc := range tests {
		if got := rebind(tc.in); got != tc.want {
			t.Fatalf("rebind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestOrderClauseDefaults(t *testing.T) {
	if got := orderClause(pagination.OrderBy{}); got != "create_time ASC" {
		t.Fatalf("expected default order, got %q", got)
	}
	if got := orderClause(pagination.OrderBy{Field: "update_time", Descending: true}); got != "update_time DESC" {
		t.Fatalf("expected descending order, got %q", got)
	}
}

func TestOpenRequiresURL(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("expected an error for a missing database url")
	}
}
