// Package export writes and reads binding snapshots as CSV, optionally
// wrapped in zstd when the target name ends in .zst. Snapshots are the
// operator's migration and backup format.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"authgate.gg/internal/store"
)

var header = []string{"name", "uuid", "qq", "created_at"}

// Write emits players as CSV. Rows follow the store's name ordering.
func Write(w io.Writer, players []store.Player) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range players {
		qq := ""
		if p.QQ != 0 {
			qq = strconv.FormatInt(p.QQ, 10)
		}
		row := []string{p.Name, p.UUID.String(), qq, p.CreatedAt.UTC().Format(time.RFC3339)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses a CSV snapshot back into player records.
func Read(r io.Reader) ([]store.Player, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	players := make([]store.Player, 0, len(rows)-1)
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		p := store.Player{Name: row[0]}
		if p.UUID, err = uuid.Parse(row[1]); err != nil {
			return nil, fmt.Errorf("row %d: uuid: %w", i+1, err)
		}
		if row[2] != "" {
			if p.QQ, err = strconv.ParseInt(row[2], 10, 64); err != nil {
				return nil, fmt.Errorf("row %d: qq: %w", i+1, err)
			}
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339, row[3]); err != nil {
			return nil, fmt.Errorf("row %d: created_at: %w", i+1, err)
		}
		players = append(players, p)
	}
	return players, nil
}

// WriteFile writes a snapshot to path, zstd-compressed when the name ends
// in .zst.
func WriteFile(path string, players []store.Player) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		return Write(f, players)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		return err
	}
	if err := Write(zw, players); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// ReadFile reads a snapshot from path, decompressing when the name ends
// in .zst.
func ReadFile(path string) ([]store.Player, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !strings.HasSuffix(path, ".zst") {
		return Read(f)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return Read(zr)
}
