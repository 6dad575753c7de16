// Package model defines the data structures used throughout the application.
package model

import "time"

// TimestampLayout is the ISO-8601 form written into the first column of
// every stored row: UTC with millisecond precision, e.g.
// "2025-12-01T18:04:05.123Z".
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// SignupPayload is what a visitor submits through the signup form.
// Name, Address and PostcardTheme are required; the rest may be empty.
type SignupPayload struct {
	Name           string `json:"name"`
	Address        string `json:"address"`
	PostcardTheme  string `json:"postcardTheme"`
	Contact        string `json:"contact,omitempty"`
	SongSuggestion string `json:"songSuggestion,omitempty"`
	// TurnstileToken is only consulted when captcha verification is enabled.
	TurnstileToken string `json:"-"`
}

// SignupEntry is a stored signup as returned to readers: the payload
// fields (decrypted) plus the server-assigned timestamp.
type SignupEntry struct {
	Timestamp      string `json:"timestamp"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	PostcardTheme  string `json:"postcardTheme"`
	Contact        string `json:"contact"`
	SongSuggestion string `json:"songSuggestion"`
}

// Column positions of a stored row. The table has no header row.
const (
	ColTimestamp = iota
	ColName
	ColAddress
	ColPostcardTheme
	ColContact
	ColSongSuggestion

	RowWidth
)

// SignupRow is one persisted row, exactly as the store holds it:
//
//	[timestamp, enc(name), enc(address), enc(theme), enc(contact), song]
//
// Rows read back from a store may be shorter than RowWidth; Cell returns
// "" for any missing column.
type SignupRow []string

// NewSignupRow builds a full-width row stamped with t.
func NewSignupRow(t time.Time, name, address, theme, contact, song string) SignupRow {
	return SignupRow{
		t.UTC().Format(TimestampLayout),
		name,
		address,
		theme,
		contact,
		song,
	}
}

// Cell returns column i, or "" when the row is too short.
func (r SignupRow) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// IsEmpty reports whether the row carries no cells at all.
func (r SignupRow) IsEmpty() bool {
	return len(r) == 0
}
