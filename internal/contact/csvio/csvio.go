// Package csvio reads and writes the semicolon-delimited contact CSV format.
//
// The delimiter is the semicolon because the app's display locale uses the
// comma as decimal separator and commas show up in free-text names. Encoding
// is UTF-8; an optional BOM prefix keeps spreadsheet tools happy on export,
// and the reader tolerates one either way.
package csvio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"carnet/internal/contact/models"
)

const Delimiter = ';'

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Header is the canonical column order for exports.
var Header = []string{"name", "email", "phone", "avatar"}

// Options controls encoding behavior.
type Options struct {
	// BOM prefixes the output with a UTF-8 byte-order mark.
	BOM bool
}

// Encode writes the header row and one row per contact. Only the four
// public fields are projected; derived fields never leave the system.
func Encode(w io.Writer, contacts []*models.Contact, opts Options) error {
	if opts.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range contacts {
		if err := cw.Write([]string{c.Name, c.Email, c.Phone, c.Avatar}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// DecodeRows parses an uploaded file into import rows. The header row maps
// columns by name, so column order does not matter and the avatar column may
// be absent. A structurally unreadable stream fails the whole decode; no
// per-row recovery happens here. Row-level validation is the reconciler's
// job.
func DecodeRows(r io.Reader) ([]models.ImportRow, error) {
	cr := csv.NewReader(&bomStrippingReader{r: r})
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["name"]; !ok {
		return nil, fmt.Errorf("csv header missing name column")
	}

	field := func(record []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []models.ImportRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rows = append(rows, models.ImportRow{
			Name:   field(record, "name"),
			Email:  field(record, "email"),
			Phone:  field(record, "phone"),
			Avatar: field(record, "avatar"),
		})
	}
	return rows, nil
}

// bomStrippingReader drops a leading UTF-8 BOM from the stream.
type bomStrippingReader struct {
	r       io.Reader
	checked bool
}

func (b *bomStrippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return 0, err
		}
		head = head[:n]
		if !bytes.Equal(head, utf8BOM) {
			b.r = io.MultiReader(bytes.NewReader(head), b.r)
		}
	}
	return b.r.Read(p)
}
