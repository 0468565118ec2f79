package domain

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keyFolder strips combining marks after NFD decomposition, so accented
// Latin letters fold to their unaccented base (é→e, à→a, ç→c).
var keyFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeKey reduces a header string to its canonical matching form:
// lowercase, accents folded, anything outside [a-z0-9_ ] replaced with a
// space, whitespace runs collapsed, edges trimmed.
func NormalizeKey(key string) string {
	s := strings.ToLower(key)
	if folded, _, err := transform.String(keyFolder, s); err == nil {
		s = folded
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizePhone strips every non-digit rune and removes one leading
// country-code prefix if present. Length checks belong to classification,
// not here; the function is idempotent.
func NormalizePhone(raw, countryPrefix string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if countryPrefix != "" && strings.HasPrefix(digits, countryPrefix) {
		digits = digits[len(countryPrefix):]
	}
	return digits
}

// timestampLayouts are tried in order; first successful strict parse wins.
var timestampLayouts = []string{
	"02/01/2006 15:04:05", // day/month/year, the operators' default
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a raw timestamp against the supported layouts.
// No timezone inference: the result is the naive local time as given.
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

const (
	longMarker = "Long:"
	latMarker  = "Lat:"
)

// ParseCoordinates extracts the longitude/latitude pair from a free-text
// location descriptor such as "Long: 11.50 Lat: 3.80 Azimut: 10". Both
// markers must be present and both numbers must parse; otherwise the pair
// is absent as a whole.
func ParseCoordinates(location string) (Coordinates, bool) {
	if !strings.Contains(location, longMarker) || !strings.Contains(location, latMarker) {
		return Coordinates{}, false
	}
	lon, ok := floatAfter(location, longMarker)
	if !ok {
		return Coordinates{}, false
	}
	lat, ok := floatAfter(location, latMarker)
	if !ok {
		return Coordinates{}, false
	}
	return Coordinates{Longitude: lon, Latitude: lat}, true
}

// floatAfter parses the first whitespace-delimited token following marker.
func floatAfter(s, marker string) (float64, bool) {
	idx := strings.Index(s, marker)
	if idx < 0 {
		return 0, false
	}
	fields := strings.Fields(s[idx+len(marker):])
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
