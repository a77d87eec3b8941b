package journal

import "testing"

func TestDistinctEntryIDs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil input", nil, []string{}},
		{"already distinct", []string{"e1", "e2"}, []string{"e1", "e2"}},
		{"duplicates keep first-seen order", []string{"e2", "e1", "e2", "e1", "e3"}, []string{"e2", "e1", "e3"}},
		{"empties dropped", []string{"", "e1", "", "e1"}, []string{"e1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistinctEntryIDs(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("DistinctEntryIDs(%v) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("DistinctEntryIDs(%v)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}
