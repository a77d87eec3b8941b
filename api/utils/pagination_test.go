package utils

import (
	"net/http/httptest"
	"testing"
)

func TestExtractPagination(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantPage   int
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"defaults", "/payments", 1, 25, 0, false},
		{"explicit page and limit", "/payments?page=3&limit=10", 3, 10, 20, false},
		{"zero page rejected", "/payments?page=0", 0, 0, 0, true},
		{"negative limit rejected", "/payments?limit=-5", 0, 0, 0, true},
		{"non-numeric page rejected", "/payments?page=abc", 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", tt.url, nil)
			got, err := ExtractPagination(r)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Page != tt.wantPage || got.Limit != tt.wantLimit || got.Offset != tt.wantOffset {
				t.Errorf("got page=%d limit=%d offset=%d, want page=%d limit=%d offset=%d",
					got.Page, got.Limit, got.Offset, tt.wantPage, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestSetPaginationStats(t *testing.T) {
	p := PaginationParams{Page: 1, Limit: 10}
	p.SetPaginationStats(25)
	if p.TotalRecords != 25 || p.TotalPages != 3 {
		t.Errorf("got records=%d pages=%d, want records=25 pages=3", p.TotalRecords, p.TotalPages)
	}

	p.SetPaginationStats(0)
	if p.TotalPages != 0 {
		t.Errorf("empty result should have 0 pages, got %d", p.TotalPages)
	}
}
