package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/vetrecords/pkg/repository"
)

var (
	errRunNotFound  = errors.New("run not found")
	errRunDuplicate = errors.New("run already running")
	errNoDocument   = errors.New("document not found")
)

func TestMapError(t *testing.T) {
	other := errors.New("connection reset")
	fk := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errRunNotFound},
		{"wrapped no rows", fmt.Errorf("find run: %w", sql.ErrNoRows), errRunNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errRunDuplicate},
		{"foreign key passes through", fk, fk},
		{"other passes through", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repository.MapError(tt.err, errRunNotFound, errRunDuplicate); got != tt.want {
				t.Errorf("MapError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapForeignKey(t *testing.T) {
	fk := fmt.Errorf("insert run: %w", &pgconn.PgError{Code: "23503"})
	if got := repository.MapForeignKey(fk, errNoDocument); got != errNoDocument {
		t.Errorf("MapForeignKey(fk) = %v", got)
	}

	unique := &pgconn.PgError{Code: "23505"}
	if got := repository.MapForeignKey(unique, errNoDocument); got != unique {
		t.Errorf("MapForeignKey(unique) = %v", got)
	}
}

func TestViolationPredicates(t *testing.T) {
	tests := []struct {
		code   string
		unique bool
		check  bool
	}{
		{"23505", true, false},
		{"23514", false, true},
		{"23503", false, false},
	}

	for _, tt := range tests {
		err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: tt.code})
		if got := repository.IsUniqueViolation(err); got != tt.unique {
			t.Errorf("%s: IsUniqueViolation = %v", tt.code, got)
		}
		if got := repository.IsCheckViolation(err); got != tt.check {
			t.Errorf("%s: IsCheckViolation = %v", tt.code, got)
		}
	}

	if repository.IsUniqueViolation(errors.New("plain")) {
		t.Error("plain error reported as unique violation")
	}
}
