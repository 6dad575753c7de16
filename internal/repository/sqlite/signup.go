package sqlite

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/holiday-postcards/internal/model"
	"github.com/sakif/holiday-postcards/internal/repository"
)

var _ repository.SignupRepository = (*DB)(nil)

// Ready always succeeds; a DB that opened is usable.
func (db *DB) Ready() error { return nil }

// Append inserts row. Cells beyond model.RowWidth are ignored and
// missing cells are stored as "".
func (db *DB) Append(ctx context.Context, row model.SignupRow) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO signups (ref, timestamp, name, address, theme, contact, song)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		xid.New().String(),
		row.Cell(model.ColTimestamp),
		row.Cell(model.ColName),
		row.Cell(model.ColAddress),
		row.Cell(model.ColPostcardTheme),
		row.Cell(model.ColContact),
		row.Cell(model.ColSongSuggestion),
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending signup: %w", err)
	}
	return nil
}

// List returns every row in insertion order.
func (db *DB) List(ctx context.Context) ([]model.SignupRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT timestamp, name, address, theme, contact, song
		 FROM signups
		 ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing signups: %w", err)
	}
	defer rows.Close()

	result := []model.SignupRow{}
	for rows.Next() {
		row := make(model.SignupRow, model.RowWidth)
		if err := rows.Scan(&row[0], &row[1], &row[2], &row[3], &row[4], &row[5]); err != nil {
			return nil, fmt.Errorf("sqlite: scanning signup row: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating signup rows: %w", err)
	}

	return result, nil
}
