package screen

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/regsift/fsregister/pkg/pipeline/core"
	"github.com/regsift/fsregister/pkg/pipeline/io/local"
	"github.com/regsift/fsregister/pkg/register"
)

// ReadSubjectsCSV reads the screening input. The "name" column is required;
// the optional "category" column takes firm, individual or fund and defaults
// to firm.
func ReadSubjectsCSV(r io.Reader) ([]Subject, error) {
	rows, err := local.ReadRows(r, "name")
	if err != nil {
		return nil, err
	}

	subjects := make([]Subject, 0, len(rows))
	for i, row := range rows {
		cat := register.CategoryFirm
		if raw := strings.TrimSpace(row["category"]); raw != "" {
			cat, err = register.ParseCategory(raw)
			if err != nil {
				// Header is row 1.
				return nil, fmt.Errorf("row %d: %w", i+2, err)
			}
		}
		subjects = append(subjects, Subject{Name: row["name"], Category: cat})
	}
	return subjects, nil
}

// WriteReportCSV writes rows as a CSV with the stable Header() ordering.
func WriteReportCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.Name,
			r.Category,
			r.ReferenceNumber,
			r.Outcome,
			r.Matches,
			r.Error,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadReportCSV reads rows from a CSV using the stable Header() contract.
//
// Extra columns are ignored. Every column from Header() must exist.
func ReadReportCSV(r io.Reader) ([]Row, error) {
	records, err := local.ReadRows(r, Header()...)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row{
			Name:            rec["name"],
			Category:        rec["category"],
			ReferenceNumber: rec["reference_number"],
			Outcome:         rec["outcome"],
			Matches:         rec["matches"],
			Error:           rec["error"],
		})
	}
	return rows, nil
}

// SubjectsFile loads screening subjects from a CSV file on disk.
type SubjectsFile struct {
	Path string
}

func (f SubjectsFile) Load(_ context.Context) ([]Subject, error) {
	in, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = in.Close()
	}()
	return ReadSubjectsCSV(in)
}

// ReportFile stores a screening report as a CSV file on disk.
type ReportFile struct {
	Path string
}

func (f ReportFile) Store(_ context.Context, rows []Row) error {
	out, err := os.Create(f.Path)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()
	if err := WriteReportCSV(out, rows); err != nil {
		return err
	}
	return out.Close()
}

var (
	_ core.InputAdapter[Subject] = SubjectsFile{}
	_ core.OutputAdapter[Row]    = ReportFile{}
)
