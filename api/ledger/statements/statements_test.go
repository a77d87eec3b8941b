package statements

import (
	"strings"
	"testing"
	"time"
)

func TestSanitizePathSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123456789", "123456789"},
		{"  123 456 ", "123_456"},
		{"a/b\\c", "a_b_c"},
		{"", "unknown"},
		{"   ", "unknown"},
	}
	for _, tt := range tests {
		if got := sanitizePathSegment(tt.in); got != tt.want {
			t.Errorf("sanitizePathSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildStatementS3Key(t *testing.T) {
	got := buildStatementS3Key("9981 22", "abc123", ".xlsx")
	want := "bankstatements/9981_22/abc123.xlsx"
	if got != want {
		t.Errorf("buildStatementS3Key = %q, want %q", got, want)
	}

	// Extension gets a dot, empty extension falls back to .bin.
	if got := buildStatementS3Key("1", "h", "csv"); !strings.HasSuffix(got, "/h.csv") {
		t.Errorf("bare extension not dotted: %q", got)
	}
	if got := buildStatementS3Key("1", "h", ""); !strings.HasSuffix(got, "/h.bin") {
		t.Errorf("empty extension fallback: %q", got)
	}
}

func TestNormalizeCell(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Account  Number ", "Account Number"},
		{"Period End", "Period End"},
		{"", ""},
		{"one\ttwo\nthree", "one two three"},
	}
	for _, tt := range tests {
		if got := normalizeCell(tt.in); got != tt.want {
			t.Errorf("normalizeCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFlexibleDate(t *testing.T) {
	want := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2026-07-31", "07/31/2026", "7/31/2026", "31-07-2026", "Jul 31, 2026", "31 Jul 2026"} {
		got, ok := parseFlexibleDate(in)
		if !ok {
			t.Errorf("parseFlexibleDate(%q) did not parse", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseFlexibleDate(%q) = %s, want %s", in, got, want)
		}
	}
	if _, ok := parseFlexibleDate("not a date"); ok {
		t.Error("parseFlexibleDate accepted garbage")
	}
	if _, ok := parseFlexibleDate(""); ok {
		t.Error("parseFlexibleDate accepted empty string")
	}
}

func TestParseStatementRowsCSV(t *testing.T) {
	csvData := []byte("Account Number,998122\nPeriod Start,2026-07-01\nPeriod End,2026-07-31\nDate,Description,Amount\n2026-07-02,Deposit,500.00\n")
	rows, ext, err := parseStatementRows(csvData)
	if err != nil {
		t.Fatalf("parseStatementRows: %v", err)
	}
	if ext != ".csv" {
		t.Errorf("ext = %q, want .csv", ext)
	}
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	if rows[0][1] != "998122" {
		t.Errorf("rows[0][1] = %q, want 998122", rows[0][1])
	}
}

func TestExtractStatementMeta(t *testing.T) {
	rows := [][]string{
		{"Constructa Bank"},
		{"Account Number:", "998122"},
		{"From", "07/01/2026", "", "To", "07/31/2026"},
		{},
		{"Date", "Description", "Amount"},
		{"2026-07-02", "Deposit", "500.00"},
	}
	account, start, end := extractStatementMeta(rows)
	if account != "998122" {
		t.Errorf("account = %q, want 998122", account)
	}
	if start == nil || !start.Equal(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period start = %v, want 2026-07-01", start)
	}
	if end == nil || !end.Equal(time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("period end = %v, want 2026-07-31", end)
	}
}

func TestExtractStatementMetaMissingLabels(t *testing.T) {
	rows := [][]string{
		{"Date", "Description", "Amount"},
		{"2026-07-02", "Deposit", "500.00"},
	}
	account, start, end := extractStatementMeta(rows)
	if account != "" || start != nil || end != nil {
		t.Errorf("expected empty meta, got (%q, %v, %v)", account, start, end)
	}
}
