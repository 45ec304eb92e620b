package sheet

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/rcliao/devplan/internal/parser"
)

const plan = `Milestone beta "Beta" date="2025-03-01"
  Task api duration=2.5 owner=alice
    Note "check"
  Task ui depends-on api
`

func TestColumns(t *testing.T) {
	doc, err := parser.ParseText(plan)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []string{"kind", "id", "parent", "from", "to", "date", "duration", "label", "owner", "text"}
	if got := Columns(doc); !reflect.DeepEqual(got, want) {
		t.Errorf("columns = %v, want %v", got, want)
	}
}

func TestWrite(t *testing.T) {
	doc, err := parser.ParseText(plan)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("got %d rows, want header plus 5 nodes: %v", len(rows), rows)
	}

	cell := func(r int, col string) string {
		t.Helper()
		for i, h := range rows[0] {
			if h == col {
				if i < len(rows[r]) {
					return rows[r][i]
				}
				return ""
			}
		}
		t.Fatalf("no column %q in %v", col, rows[0])
		return ""
	}

	tests := []struct {
		row  int
		col  string
		want string
	}{
		{1, "kind", "milestone"},
		{1, "id", "beta"},
		{1, "parent", ""},
		{1, "label", "Beta"},
		{1, "date", "2025-03-01"},
		{2, "parent", "beta"},
		{2, "duration", "2.5"},
		{2, "owner", "alice"},
		{3, "kind", "note"},
		{3, "parent", "api"},
		{3, "text", "check"},
		{4, "id", "ui"},
		{5, "kind", "dependency"},
		{5, "parent", "ui"},
		{5, "from", "ui"},
		{5, "to", "api"},
	}
	for _, tt := range tests {
		if got := cell(tt.row, tt.col); got != tt.want {
			t.Errorf("row %d %s = %q, want %q", tt.row, tt.col, got, tt.want)
		}
	}
}

func TestWrite_EmptyDocument(t *testing.T) {
	doc, err := parser.ParseText("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, doc); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(SheetName)
	if len(rows) != 1 || !reflect.DeepEqual(rows[0], fixedColumns) {
		t.Errorf("rows = %v, want only the header", rows)
	}
}
