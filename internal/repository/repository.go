// Package repository defines where signup rows are persisted.
//
// A store only ever sees rows that are already in their final shape
// (timestamp, four envelopes, plaintext song); encryption and decryption
// stay in the service layer.
package repository

import (
	"context"

	"github.com/sakif/holiday-postcards/internal/model"
)

// SignupRepository is an append-only table of signup rows.
type SignupRepository interface {
	// Ready reports configuration problems before a request is processed.
	Ready() error
	// Append adds one row at the end of the table.
	Append(ctx context.Context, row model.SignupRow) error
	// List returns every row in append order. Rows may be shorter than
	// model.RowWidth.
	List(ctx context.Context) ([]model.SignupRow, error)
	Close() error
}
