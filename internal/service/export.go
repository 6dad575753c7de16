package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sakif/holiday-postcards/internal/model"
)

// ExportHeader is the first line of every CSV export.
var ExportHeader = []string{"Timestamp", "Name", "Address", "Postcard Theme", "Contact", "Song Suggestion"}

// ExportFilename names an export taken at t, e.g.
// "christmas-signups-2025-12-01T18-04-05-123Z.csv".
func ExportFilename(t time.Time) string {
	stamp := t.UTC().Format(model.TimestampLayout)
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "christmas-signups-" + stamp + ".csv"
}

// Export writes every decrypted signup to w as a spreadsheet-friendly CSV:
// UTF-8 BOM, every cell quoted, CRLF between lines, and line breaks inside
// cells flattened to spaces. Nothing is written when listing fails.
func (s *SignupService) Export(ctx context.Context, w io.Writer) error {
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("\ufeff")
	writeCSVLine(bw, ExportHeader)
	for _, e := range entries {
		bw.WriteString("\r\n")
		writeCSVLine(bw, []string{e.Timestamp, e.Name, e.Address, e.PostcardTheme, e.Contact, e.SongSuggestion})
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("service/export: writing csv: %w", err)
	}
	return nil
}

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ")

// writeCSVLine writes cells without a trailing line break. encoding/csv
// only quotes cells that need it, so quoting is done here.
func writeCSVLine(w *bufio.Writer, cells []string) {
	for i, c := range cells {
		if i > 0 {
			w.WriteByte(',')
		}
		c = newlines.Replace(c)
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(c, `"`, `""`))
		w.WriteByte('"')
	}
}
