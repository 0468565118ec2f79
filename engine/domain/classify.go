package domain

import (
	"strings"
	"unicode"

	"github.com/sigintlabs/cdrgraph/pkg/fn"
)

// minCallerDigits is the shortest usable subscriber number after
// normalization.
const minCallerDigits = 8

// Classify turns one raw row into a NormalizedRecord or a rejection.
// Rejections come back as RecordError values wrapping the sentinel for the
// failed check; they never abort anything beyond this row.
func Classify(rec *RawRecord, cfg FieldConfig) fn.Result[NormalizedRecord] {
	callerRaw, callerOK := cfg.Resolve(rec, FieldCaller)
	calleeRaw, calleeOK := cfg.Resolve(rec, FieldCallee)
	tsRaw, tsOK := cfg.Resolve(rec, FieldTimestamp)
	if !callerOK || !calleeOK || !tsOK {
		field := string(FieldCaller)
		switch {
		case callerOK && !calleeOK:
			field = string(FieldCallee)
		case callerOK && calleeOK:
			field = string(FieldTimestamp)
		}
		return fn.Err[NormalizedRecord](NewRecordError(field, "", ErrMissingField))
	}

	ts, ok := ParseTimestamp(tsRaw)
	if !ok {
		return fn.Err[NormalizedRecord](NewRecordError(string(FieldTimestamp), tsRaw, ErrUnparseableTimestamp))
	}

	caller := NormalizePhone(callerRaw, cfg.CountryPrefix)
	if len(caller) < minCallerDigits {
		return fn.Err[NormalizedRecord](NewRecordError(string(FieldCaller), callerRaw, ErrInvalidCaller))
	}

	// A callee with no digits at all is a service destination (short code
	// or named service), identified by its raw text.
	service := !containsDigit(calleeRaw)
	var callee string
	if service {
		callee = strings.TrimSpace(calleeRaw)
	} else {
		callee = NormalizePhone(calleeRaw, cfg.CountryPrefix)
	}
	if callee == "" {
		return fn.Err[NormalizedRecord](NewRecordError(string(FieldCallee), calleeRaw, ErrInvalidCallee))
	}

	duration, _ := cfg.Resolve(rec, FieldDuration)
	kind := KindCall
	if service || strings.Contains(strings.ToLower(duration), "sms") {
		kind = KindSMS
	}

	imei, _ := cfg.Resolve(rec, FieldIMEI)
	location, _ := cfg.Resolve(rec, FieldLocation)

	out := NormalizedRecord{
		Caller:        caller,
		Callee:        callee,
		CalleeService: service,
		Timestamp:     ts,
		Duration:      duration,
		Kind:          kind,
		IMEI:          imei,
		Location:      location,
	}
	if coords, ok := ParseCoordinates(location); ok {
		out.Coords = &coords
	}
	return fn.Ok(out)
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
