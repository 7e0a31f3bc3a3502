package services

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestAsServiceErrorMapsStorageErrors(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"duplicate key", gorm.ErrDuplicatedKey, ErrConflict},
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"foreign key violated", gorm.ErrForeignKeyViolated, ErrInvalidInput},
		{"wrapped foreign key", fmt.Errorf("insert: %w", gorm.ErrForeignKeyViolated), ErrInvalidInput},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := asServiceError(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("asServiceError(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestAsServiceErrorPassesThroughUnknown(t *testing.T) {
	sentinel := errors.New("disk on fire")
	if got := asServiceError(sentinel); got != sentinel {
		t.Fatalf("unknown errors must pass through unchanged, got %v", got)
	}
	if asServiceError(nil) != nil {
		t.Fatal("nil must stay nil")
	}
}
