package ingest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestForExtension(t *testing.T) {
	for _, ext := range []string{"xlsx", "xls", "csv", "json", "pdf", ".CSV", "JSON"} {
		if _, err := ForExtension(ext); err != nil {
			t.Fatalf("ForExtension(%q): %v", ext, err)
		}
	}
	for _, ext := range []string{"", "txt", "docx", "exe"} {
		if _, err := ForExtension(ext); !errors.Is(err, ErrUnsupportedFormat) {
			t.Fatalf("ForExtension(%q): expected ErrUnsupportedFormat, got %v", ext, err)
		}
	}
}

func TestCSVParse(t *testing.T) {
	data := []byte("name,user_id,roll_number,password,role,batch,semester\n" +
		"Jane Doe,jdoe01,R001,pass123,student,N,2\n" +
		"Bob Smith,bsmith02,R002,pass456,faculty,,\n" +
		",,,,,,\n")

	parser, err := ForExtension("csv")
	if err != nil {
		t.Fatalf("ForExtension: %v", err)
	}
	records, err := parser.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Text("name") != "Jane Doe" || records[0].Text("batch") != "N" {
		t.Fatalf("unexpected first record: %v", records[0])
	}
	if sem, ok := records[0].Int("semester"); !ok || sem != 2 {
		t.Fatalf("unexpected semester: %v %v", sem, ok)
	}
	if records[1].Text("user_id") != "bsmith02" {
		t.Fatalf("unexpected second record: %v", records[1])
	}
}

func TestCSVParseMalformed(t *testing.T) {
	parser, _ := ForExtension("csv")
	if _, err := parser.Parse([]byte("a,\"b\nunterminated")); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestJSONParseArray(t *testing.T) {
	data := []byte(`[{"name":"Jane Doe","user_id":"jdoe01","roll_number":"R001","password":"pass123","role":"student","semester":2}]`)
	parser, _ := ForExtension("json")
	records, err := parser.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if sem, ok := records[0].Int("semester"); !ok || sem != 2 {
		t.Fatalf("numeric semester not carried: %v %v", sem, ok)
	}
}

func TestJSONParseUsersObject(t *testing.T) {
	data := []byte(`{"users":[{"name":"Bob","user_id":"bsmith02","roll_number":"R002","password":"x","role":"faculty"}]}`)
	parser, _ := ForExtension("json")
	records, err := parser.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 1 || records[0].Text("user_id") != "bsmith02" {
		t.Fatalf("unexpected records: %v", records)
	}
}

func TestJSONParseRejectsOtherShapes(t *testing.T) {
	parser, _ := ForExtension("json")
	for _, data := range []string{`"hello"`, `42`, `{"accounts":[]}`, `[1,2,3]`, `{not json`} {
		if _, err := parser.Parse([]byte(data)); !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("payload %q: expected ErrMalformedPayload, got %v", data, err)
		}
	}
}

func TestSheetParse(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	rows := [][]any{
		{"name", "user_id", "roll_number", "password", "role"},
		{"Jane Doe", "jdoe01", "R001", "pass123", "student"},
		{"Bob Smith", "bsmith02", "R002", "pass456", "faculty"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	parser, _ := ForExtension("xlsx")
	records, err := parser.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Text("name") != "Jane Doe" || records[1].Text("role") != "faculty" {
		t.Fatalf("unexpected records: %v", records)
	}
}

func TestSheetParseMalformed(t *testing.T) {
	parser, _ := ForExtension("xlsx")
	if _, err := parser.Parse([]byte("definitely not a workbook")); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestRawRecordHelpers(t *testing.T) {
	rec := RawRecord{"a": " x ", "b": float64(3), "c": float64(2.5), "d": "7", "e": nil}
	if rec.Text("a") != "x" {
		t.Fatalf("Text trim failed: %q", rec.Text("a"))
	}
	if rec.Text("b") != "3" {
		t.Fatalf("Text float failed: %q", rec.Text("b"))
	}
	if rec.Text("c") != "2.5" {
		t.Fatalf("Text fraction failed: %q", rec.Text("c"))
	}
	if n, ok := rec.Int("d"); !ok || n != 7 {
		t.Fatalf("Int string failed: %v %v", n, ok)
	}
	if _, ok := rec.Int("e"); ok {
		t.Fatal("Int on nil should fail")
	}
	if rec.Text("missing") != "" {
		t.Fatal("missing key should yield empty string")
	}
}
