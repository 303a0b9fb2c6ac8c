package db

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: CodeExclusionViolation, ConstraintName: "appointments_room_no_overlap"}
	wrapped := fmt.Errorf("insert appointment: %w", pgErr)

	got, ok := Violation(wrapped, CodeExclusionViolation)
	if !ok || got.ConstraintName != "appointments_room_no_overlap" {
		t.Fatalf("Violation = %v, %v", got, ok)
	}
	if _, ok := Violation(wrapped, CodeForeignKeyViolation); ok {
		t.Error("matched the wrong SQLSTATE")
	}
	if _, ok := Violation(errors.New("plain"), CodeExclusionViolation); ok {
		t.Error("matched a non-Postgres error")
	}
}

func TestSchemaDeclaresExclusionConstraints(t *testing.T) {
	for _, name := range []string{"appointments_professional_no_overlap", "appointments_room_no_overlap"} {
		if !strings.Contains(schemaSQL, name) {
			t.Errorf("schema is missing constraint %s", name)
		}
	}
}
