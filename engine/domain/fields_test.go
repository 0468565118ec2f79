package domain

import "testing"

func record(pairs ...[2]any) *RawRecord {
	r := NewRawRecord()
	for _, p := range pairs {
		r.Set(p[0].(string), p[1])
	}
	return r
}

func TestResolveExactMatch(t *testing.T) {
	rec := record([2]any{"Numéro Appelant", "690000001"})
	v, ok := Resolve(rec, []string{"Numéro Appelant"})
	if !ok || v != "690000001" {
		t.Fatalf("got %q, %v", v, ok)
	}
}

func TestResolvePrefixMatch(t *testing.T) {
	// Spreadsheet exports sometimes append cell-range noise to headers.
	rec := record([2]any{"Numéro appeléA1:F1", "690000002"})
	v, ok := Resolve(rec, []string{"Numéro appelé"})
	if !ok || v != "690000002" {
		t.Fatalf("prefix match failed: got %q, %v", v, ok)
	}
}

func TestResolveExactBeatsPrefix(t *testing.T) {
	rec := record(
		[2]any{"Numéro appelé suffixe", "wrong"},
		[2]any{"Numéro appelé", "right"},
	)
	v, _ := Resolve(rec, []string{"Numéro appelé"})
	if v != "right" {
		t.Fatalf("exact match should win over prefix, got %q", v)
	}
}

func TestResolveCandidateOrder(t *testing.T) {
	rec := record(
		[2]any{"Localisation numéro appelant", "tower-a"},
		[2]any{"Localisation", "tower-b"},
	)
	v, _ := Resolve(rec, []string{"Localisation", "Localisation numéro appelant"})
	if v != "tower-b" {
		t.Fatalf("first candidate should win, got %q", v)
	}
}

func TestResolveInsertionOrderTieBreak(t *testing.T) {
	rec := record(
		[2]any{"Numéro appelé A", "first"},
		[2]any{"Numéro appelé B", "second"},
	)
	v, _ := Resolve(rec, []string{"Numéro appelé"})
	if v != "first" {
		t.Fatalf("row insertion order should break prefix ties, got %q", v)
	}
}

func TestResolveSkipsBlankValues(t *testing.T) {
	rec := record(
		[2]any{"Numéro appelé", "   "},
		[2]any{"Numéro appelé bis", nil},
	)
	if _, ok := Resolve(rec, []string{"Numéro appelé"}); ok {
		t.Fatal("blank and nil values must never be candidates")
	}
}

func TestResolveExclude(t *testing.T) {
	rec := record(
		[2]any{"Localisation numéro appelant", "tower-a"},
		[2]any{"Localisation", "tower-b"},
	)
	v, ok := Resolve(rec, []string{"Localisation"}, "Localisation")
	if !ok || v != "tower-a" {
		t.Fatalf("exclusion should skip the exact header, got %q, %v", v, ok)
	}
}

func TestResolveStringifiesNumbers(t *testing.T) {
	rec := record([2]any{"Numéro Appelant", float64(690000001)})
	v, ok := Resolve(rec, []string{"Numéro Appelant"})
	if !ok || v != "690000001" {
		t.Fatalf("numeric cell should stringify without exponent, got %q", v)
	}
}

func TestResolveAbsent(t *testing.T) {
	rec := record([2]any{"IMEI", "35000000"})
	if _, ok := Resolve(rec, []string{"Numéro Appelant"}); ok {
		t.Fatal("no candidate should match")
	}
	if _, ok := Resolve(nil, []string{"Numéro Appelant"}); ok {
		t.Fatal("nil record should resolve to absent")
	}
}

func TestRawRecordJSONRoundTrip(t *testing.T) {
	rec := record(
		[2]any{"Numéro Appelant", "690000001"},
		[2]any{"Durée appel", "00:01:20"},
		[2]any{"IMEI", nil},
	)
	data, err := rec.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}

	var back RawRecord
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatal(err)
	}
	keys := back.Keys()
	if len(keys) != 3 || keys[0] != "Numéro Appelant" || keys[1] != "Durée appel" {
		t.Fatalf("key order lost: %v", keys)
	}
	if v, _ := back.Get("Durée appel"); v != "00:01:20" {
		t.Fatalf("value lost: %v", v)
	}
}
