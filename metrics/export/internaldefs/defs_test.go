package internaldefs

import (
	"strings"
	"testing"
)

func TestCumulative(t *testing.T) {
	got := Cumulative([]uint64{1, 0, 2, 0, 0, 0, 0, 3})
	want := [BucketCount]uint64{1, 1, 3, 3, 3, 3, 3, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if Cumulative(nil) != ([BucketCount]uint64{}) {
		t.Fatal("expected zeros for nil input")
	}
	if Cumulative([]uint64{2})[BucketCount-1] != 2 {
		t.Fatal("expected short input padded")
	}
}

func TestNamesAreUniqueAndPrefixed(t *testing.T) {
	seen := map[string]bool{AuditDroppedName: true}
	for _, d := range append(append([]Def{}, CounterDefs...), HistogramDefs...) {
		if !strings.HasPrefix(d.Name, "dealerportal_") {
			t.Errorf("%s: missing prefix", d.Name)
		}
		if seen[d.Name] {
			t.Errorf("%s: duplicate name", d.Name)
		}
		seen[d.Name] = true
	}
}
