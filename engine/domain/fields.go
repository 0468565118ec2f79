package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// LogicalField is a semantic role the pipeline needs per row, independent
// of the literal header text an operator export uses for it.
type LogicalField string

const (
	FieldCaller    LogicalField = "caller"
	FieldCallee    LogicalField = "callee"
	FieldDuration  LogicalField = "duration"
	FieldIMEI      LogicalField = "imei"
	FieldLocation  LogicalField = "location"
	FieldTimestamp LogicalField = "timestamp"
)

// FieldConfig maps each logical field to its ordered header aliases and
// carries the country-code prefix for phone normalization. Alias sets are
// injected into the pipeline so new export variants need no code change.
type FieldConfig struct {
	Aliases       map[LogicalField][]string
	CountryPrefix string
}

// DefaultCountryPrefix is the single fixed prefix stripped from numbers.
const DefaultCountryPrefix = "237"

// DefaultFieldConfig returns the alias sets seen across operator exports,
// including known malformed variants (cell-range artifacts like "A1:F1").
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		Aliases: map[LogicalField][]string{
			FieldCaller:    {"Numéro Appelant"},
			FieldCallee:    {"Numéro appelé", "Numéro appeléA1:F1"},
			FieldDuration:  {"Durée appel"},
			FieldIMEI:      {"IMEI numéro appelant"},
			FieldLocation:  {"Localisation", "Localisation numéro appelant"},
			FieldTimestamp: {"Date Début appel"},
		},
		CountryPrefix: DefaultCountryPrefix,
	}
}

// Resolve looks up a logical field's value in a raw record.
func (c FieldConfig) Resolve(rec *RawRecord, field LogicalField) (string, bool) {
	return Resolve(rec, c.Aliases[field])
}

// Resolve finds a value in a raw record by candidate headers, in order.
// For each candidate it tries an exact NormalizeKey match first, then the
// first record header (in insertion order) whose normalized form starts
// with the candidate's. Entries with nil or blank values never match, and
// neither do excluded headers.
func Resolve(rec *RawRecord, candidates []string, exclude ...string) (string, bool) {
	if rec == nil || rec.Len() == 0 {
		return "", false
	}

	type entry struct {
		norm string
		val  string
	}
	var entries []entry
	exact := make(map[string]string)
	for _, k := range rec.Keys() {
		v, _ := rec.Get(k)
		s := stringifyScalar(v)
		if strings.TrimSpace(s) == "" {
			continue
		}
		nk := NormalizeKey(k)
		entries = append(entries, entry{norm: nk, val: s})
		if _, seen := exact[nk]; !seen {
			exact[nk] = s
		}
	}

	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		excluded[NormalizeKey(e)] = true
	}

	for _, cand := range candidates {
		nc := NormalizeKey(cand)
		if v, ok := exact[nc]; ok && !excluded[nc] {
			return v, true
		}
		for _, e := range entries {
			if strings.HasPrefix(e.norm, nc) && !excluded[e.norm] {
				return e.val, true
			}
		}
	}
	return "", false
}

// stringifyScalar renders a raw cell value as text. Numeric cells must not
// pick up exponent notation since they are mostly phone numbers.
func stringifyScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
