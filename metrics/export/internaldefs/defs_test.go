package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool, len(CounterDefs))
	ids := make(map[uint16]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "storefront_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %q breaks the naming convention", def.Name)
		}
		if seen[def.Name] || ids[uint16(def.ID)] {
			t.Fatalf("duplicate counter %q", def.Name)
		}
		seen[def.Name] = true
		ids[uint16(def.ID)] = true
	}
	if seen[AuditDroppedName] || seen[ActiveSessionsName] {
		t.Fatal("provider-level metrics must not shadow a counter")
	}
	if len(HistogramBounds) != len(NormalizeBuckets(nil)) || HistogramBounds[len(HistogramBounds)-1] != "+Inf" {
		t.Fatal("bounds must cover every bucket and end with +Inf")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
