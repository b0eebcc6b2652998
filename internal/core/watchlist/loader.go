package watchlist

import (
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"opscreen/internal/core/entitykey"
	perr "opscreen/internal/platform/errors"
)

// File pairs a dataset export with its source label
type File struct {
	Path       string
	SourceType string // SourceSanctions or SourcePEP
}

// Load reads one or more simplified consolidated exports into a snapshot.
// Each file is a CSV with a header row; unknown columns are ignored so the
// loader survives upstream schema additions
func Load(files ...File) (*Snapshot, error) {
	var rows []Row
	for _, f := range files {
		fh, err := os.Open(f.Path)
		if err != nil {
			return nil, perr.Unavailablef("watchlist open %s: %v", f.Path, err)
		}
		part, err := readCSV(fh, f.SourceType)
		cerr := fh.Close()
		if err != nil {
			return nil, perr.Unavailablef("watchlist read %s: %v", f.Path, err)
		}
		if cerr != nil {
			return nil, perr.Unavailablef("watchlist close %s: %v", f.Path, cerr)
		}
		rows = append(rows, part...)
	}
	return NewSnapshot(rows, time.Now().UTC()), nil
}

func readCSV(r io.Reader, sourceType string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // exports occasionally carry ragged rows

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	pick := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := Row{
			ID:         pick(rec, "id"),
			Schema:     pick(rec, "schema"),
			Name:       pick(rec, "name"),
			Aliases:    SplitAliases(pick(rec, "aliases")),
			BirthDate:  entitykey.NormalizeDOB(pick(rec, "birth_date")),
			Countries:  pick(rec, "countries"),
			Position:   pick(rec, "position"),
			Topics:     pick(rec, "topics"),
			Dataset:    pick(rec, "dataset"),
			ProgramIDs: pick(rec, "program_ids"),
			Sanctions:  pick(rec, "sanctions"),
			SourceType: sourceType,
		}
		if st := pick(rec, "source_type"); st != "" {
			row.SourceType = strings.ToLower(st)
		}
		if row.Name == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
