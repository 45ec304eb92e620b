// Package sheet flattens a plan document into a spreadsheet.
package sheet

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/rcliao/devplan/internal/model"
)

// MediaType is the content type of the workbook written by Write.
const MediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName names the single worksheet in the workbook.
const SheetName = "Plan"

var fixedColumns = []string{"kind", "id", "parent", "from", "to"}

// Columns returns the header row: the fixed columns followed by every other
// attribute key used in doc, sorted.
func Columns(doc *model.PlanDocument) []string {
	seen := map[string]bool{}
	for _, c := range fixedColumns {
		seen[c] = true
	}
	var extra []string
	doc.Walk(func(n *model.PlanNode, _ int) bool {
		for _, a := range n.Attributes {
			if !seen[a.Key] {
				seen[a.Key] = true
				extra = append(extra, a.Key)
			}
		}
		return true
	})
	sort.Strings(extra)
	return append(append([]string{}, fixedColumns...), extra...)
}

// Rows returns one row per node in document order, aligned with Columns.
// Number attributes are float64 so they land in numeric cells.
func Rows(doc *model.PlanDocument) [][]any {
	cols := Columns(doc)
	var rows [][]any
	doc.Visit(func(n, parent *model.PlanNode) {
		row := make([]any, len(cols))
		for i, c := range cols {
			switch c {
			case "kind":
				row[i] = string(n.Kind)
			case "id":
				row[i] = n.ID
			case "parent":
				if parent != nil {
					row[i] = parent.ID
				} else {
					row[i] = ""
				}
			default:
				v, ok := n.Attr(c)
				switch {
				case !ok:
					row[i] = ""
				case v.Type == model.TypeNumber:
					row[i] = v.Number
				default:
					row[i] = v.Text
				}
			}
		}
		rows = append(rows, row)
	})
	return rows
}

// Write encodes doc as an xlsx workbook with a bold header row.
func Write(w io.Writer, doc *model.PlanDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := Columns(doc)
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, row := range Rows(doc) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
