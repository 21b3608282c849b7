package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gagyebu/internal/core"
	"gagyebu/internal/importer"
	"gagyebu/internal/sheets"
	"gagyebu/internal/sheets/xlsx"
)

// ExportFileName is the suggested name for ExportJSON output.
const ExportFileName = "transactions.json"

// Report summarizes one bulk import.
type Report struct {
	Imported int   `json:"imported"` // accepted records, replacements included
	Replaced int   `json:"replaced"` // accepted records whose id already existed
	Rejected []int `json:"rejected"` // input indexes that failed validation
}

// ImportJSON merges an exported JSON array into the store. A document that
// is not a JSON array fails with *importer.FormatError and changes nothing;
// invalid elements are skipped and listed in the report.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader) (Report, error) {
	if err := s.imports.Acquire(ctx, 1); err != nil {
		return Report{}, err
	}
	defer s.imports.Release(1)

	data, err := io.ReadAll(r)
	if err != nil {
		return Report{}, fmt.Errorf("read import: %w", err)
	}
	res, err := importer.NormalizeJSON(data)
	if err != nil {
		s.logger.WarnContext(ctx, "JSON import rejected", "operation", OpImport, "error", err)
		return Report{}, err
	}
	return s.apply(ctx, "json", res), nil
}

// ImportSpreadsheet merges the first worksheet of an .xlsx workbook.
func (s *Store) ImportSpreadsheet(ctx context.Context, r io.Reader) (Report, error) {
	if err := s.imports.Acquire(ctx, 1); err != nil {
		return Report{}, err
	}
	defer s.imports.Release(1)

	rows, err := xlsx.ReadFirstSheet(r)
	if err != nil {
		s.logger.WarnContext(ctx, "Spreadsheet import rejected", "operation", OpImport, "error", err)
		return Report{}, err
	}
	return s.apply(ctx, "spreadsheet", importer.NormalizeGrid(rows, s.newID)), nil
}

// ImportGrid merges an already loaded worksheet grid.
func (s *Store) ImportGrid(ctx context.Context, rows [][]any) (Report, error) {
	if err := s.imports.Acquire(ctx, 1); err != nil {
		return Report{}, err
	}
	defer s.imports.Release(1)

	return s.apply(ctx, "grid", importer.NormalizeGrid(rows, s.newID)), nil
}

// ImportSheet reads src and merges its grid.
func (s *Store) ImportSheet(ctx context.Context, src sheets.GridSource) (Report, error) {
	if err := s.imports.Acquire(ctx, 1); err != nil {
		return Report{}, err
	}
	defer s.imports.Release(1)

	rows, err := src.ReadGrid(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("read sheet: %w", err)
	}
	return s.apply(ctx, "sheet", importer.NormalizeGrid(rows, s.newID)), nil
}

// apply merges accepted records into the current list under the lock. New
// records go in front, keeping their input order; known ids are replaced
// where they stand.
func (s *Store) apply(ctx context.Context, source string, res importer.Result) Report {
	rep := Report{Imported: len(res.Accepted), Rejected: res.RejectedIndexes()}
	if len(res.Accepted) == 0 {
		s.logger.InfoContext(ctx, "Import added nothing", "operation", OpImport, "source", source, "rejected", len(rep.Rejected))
		return rep
	}

	s.mu.Lock()
	pos := make(map[string]int, len(s.items))
	for i, t := range s.items {
		pos[t.ID] = i
	}
	fresh := make([]core.Transaction, 0, len(res.Accepted))
	freshPos := make(map[string]int)
	for _, t := range res.Accepted {
		if i, ok := pos[t.ID]; ok {
			s.items[i] = t
			rep.Replaced++
			continue
		}
		if j, ok := freshPos[t.ID]; ok {
			fresh[j] = t
			rep.Replaced++
			continue
		}
		freshPos[t.ID] = len(fresh)
		fresh = append(fresh, t)
	}
	s.items = slices.Concat(fresh, s.items)
	c := s.commitLocked(ctx, OpImport, rep.Imported, "")
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Import applied", "operation", OpImport, "source", source,
		"imported", rep.Imported, "replaced", rep.Replaced, "rejected", len(rep.Rejected), "total", c.Total)
	s.notify(ctx, c)
	return rep
}

// ExportJSON writes the full canonical list as an indented JSON array.
func (s *Store) ExportJSON(w io.Writer) error {
	data, err := json.MarshalIndent(s.All(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}
