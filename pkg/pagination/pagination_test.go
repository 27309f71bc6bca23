package pagination

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   Params
		want Params
	}{
		{in: Params{}, want: Params{Page: 1, Limit: DefaultLimit}},
		{in: Params{Page: -3, Limit: 500}, want: Params{Page: 1, Limit: MaxLimit}},
		{in: Params{Page: 4, Limit: 10}, want: Params{Page: 4, Limit: 10}},
	}
	for _, tt := range tests {
		if got := tt.in.Normalize(); got != tt.want {
			t.Fatalf("Normalize(%+v) = %+v want %+v", tt.in, got, tt.want)
		}
	}
	if off := (Params{Page: 3, Limit: 10}).Offset(); off != 20 {
		t.Fatalf("expected offset 20, got %d", off)
	}
}

func TestNewMeta(t *testing.T) {
	meta := NewMeta(Params{Page: 2, Limit: 10}, 25)
	if meta.TotalPages != 3 || meta.Total != 25 || meta.Page != 2 {
		t.Fatalf("unexpected meta %+v", meta)
	}
	if empty := NewMeta(Params{}, 0); empty.TotalPages != 0 {
		t.Fatalf("expected zero pages, got %+v", empty)
	}
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	if got := Slice(items, Params{Page: 2, Limit: 2}); len(got) != 2 || got[0] != 3 {
		t.Fatalf("unexpected page %v", got)
	}
	if got := Slice(items, Params{Page: 3, Limit: 2}); len(got) != 1 || got[0] != 5 {
		t.Fatalf("unexpected last page %v", got)
	}
	if got := Slice(items, Params{Page: 9, Limit: 2}); len(got) != 0 {
		t.Fatalf("expected empty page, got %v", got)
	}
}
