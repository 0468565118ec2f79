package domain

import (
	"testing"
	"time"
)

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Numéro Appelant", "numero appelant"},
		{"Numéro appeléA1:F1", "numero appelea1 f1"},
		{"  Durée   appel ", "duree appel"},
		{"Localisation numéro appelant", "localisation numero appelant"},
		{"Date Début appel", "date debut appel"},
		{"reçu_à", "recu_a"},
		{"", ""},
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeKeyEquivalence(t *testing.T) {
	// Headers that differ only by accents, case, or whitespace runs
	// normalize identically.
	pairs := [][2]string{
		{"Numéro Appelé", "numero  appele"},
		{"DURÉE APPEL", "durée appel"},
		{"Date\tDébut\nappel", "date debut appel"},
	}
	for _, p := range pairs {
		if NormalizeKey(p[0]) != NormalizeKey(p[1]) {
			t.Errorf("NormalizeKey(%q) != NormalizeKey(%q)", p[0], p[1])
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw    string
		prefix string
		want   string
	}{
		{"+237690000001", "237", "690000001"},
		{"690000002", "237", "690000002"},
		{"237 69 00 00 03", "237", "690000003"},
		{"(237) 690-000-004", "237", "690000004"},
		{"abc", "237", ""},
		{"1234", "237", "1234"},
		{"690000001", "", "690000001"},
	}
	for _, c := range cases {
		if got := NormalizePhone(c.raw, c.prefix); got != c.want {
			t.Errorf("NormalizePhone(%q, %q) = %q, want %q", c.raw, c.prefix, got, c.want)
		}
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	once := NormalizePhone("+237690000001", "237")
	twice := NormalizePhone(once, "237")
	if once != twice {
		t.Fatalf("normalization not idempotent: %q then %q", once, twice)
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"01/02/2023 10:15:00", time.Date(2023, 2, 1, 10, 15, 0, 0, time.UTC), true},
		{"2023-02-01 10:15:00", time.Date(2023, 2, 1, 10, 15, 0, 0, time.UTC), true},
		{" 01/02/2023 10:15:00 ", time.Date(2023, 2, 1, 10, 15, 0, 0, time.UTC), true},
		{"Feb 1 2023", time.Time{}, false},
		{"01/02/2023", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, c := range cases {
		got, ok := ParseTimestamp(c.raw)
		if ok != c.ok {
			t.Errorf("ParseTimestamp(%q) ok = %v, want %v", c.raw, ok, c.ok)
			continue
		}
		if ok && !got.Equal(c.want) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestParseCoordinates(t *testing.T) {
	cases := []struct {
		loc  string
		want Coordinates
		ok   bool
	}{
		{"Long: 11.50 Lat: 3.80 Azimut: 10", Coordinates{11.50, 3.80}, true},
		{"Long:11.50 Lat:3.80", Coordinates{11.50, 3.80}, true},
		{"Lat: 3.80 Long: 11.50", Coordinates{11.50, 3.80}, true},
		{"Long: 11.50", Coordinates{}, false},
		{"Lat: 3.80", Coordinates{}, false},
		{"Long: abc Lat: 3.80", Coordinates{}, false},
		{"Long: 11.50 Lat: xyz", Coordinates{}, false},
		{"Yaoundé centre", Coordinates{}, false},
		{"", Coordinates{}, false},
	}
	for _, c := range cases {
		got, ok := ParseCoordinates(c.loc)
		if ok != c.ok {
			t.Errorf("ParseCoordinates(%q) ok = %v, want %v", c.loc, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("ParseCoordinates(%q) = %+v, want %+v", c.loc, got, c.want)
		}
	}
}

func TestParseCoordinatesNeverPartial(t *testing.T) {
	// Malformed latitude must drop the longitude too.
	if _, ok := ParseCoordinates("Long: 11.50 Lat: "); ok {
		t.Fatal("missing latitude value should yield no coordinates at all")
	}
}
