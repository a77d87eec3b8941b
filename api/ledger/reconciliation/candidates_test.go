package reconciliation

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestExcludePrior(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Amount: decimal.New(100, 0)},
		{ID: "b", Amount: decimal.New(200, 0)},
		{ID: "c", Amount: decimal.New(300, 0)},
	}

	t.Run("no prior reconciliations", func(t *testing.T) {
		got := excludePrior(candidates, nil)
		if len(got) != 3 {
			t.Errorf("got %d candidates, want 3", len(got))
		}
	})

	t.Run("drops previously cleared", func(t *testing.T) {
		got := excludePrior(candidates, map[string]bool{"b": true})
		if len(got) != 2 {
			t.Fatalf("got %d candidates, want 2", len(got))
		}
		if got[0].ID != "a" || got[1].ID != "c" {
			t.Errorf("got [%s %s], want [a c]", got[0].ID, got[1].ID)
		}
	})

	t.Run("all previously cleared", func(t *testing.T) {
		got := excludePrior(candidates, map[string]bool{"a": true, "b": true, "c": true})
		if len(got) != 0 {
			t.Errorf("got %d candidates, want 0", len(got))
		}
	})

	t.Run("prior ids not in the set are ignored", func(t *testing.T) {
		got := excludePrior(candidates, map[string]bool{"x": true})
		if len(got) != 3 {
			t.Errorf("got %d candidates, want 3", len(got))
		}
	})
}
