package formakv

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const microsPerSecond = int64(time.Second / time.Microsecond)

// readValue converts a stored string into the in-memory value for vt.
// Unreadable datetime and date values degrade to nil instead of failing.
func readValue(field string, vt ValueType, raw string, loc *time.Location) (any, error) {
	switch vt {
	case ValueTypeString:
		return raw, nil

	case ValueTypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse integer: %w", err)
		}
		return n, nil

	case ValueTypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("parse float: %w", err)
		}
		return f, nil

	case ValueTypeBool:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse bool: %w", err)
		}
		return n != 0, nil

	case ValueTypeDateTime:
		t, err := parseEpoch(raw, loc)
		if err != nil {
			zap.S().Debugw("unreadable datetime, using nil", "field", field, "raw", raw, "error", err)
			return nil, nil
		}
		return t, nil

	case ValueTypeDate:
		t, err := parseEpoch(raw, loc)
		if err != nil {
			zap.S().Debugw("unreadable date, using nil", "field", field, "raw", raw, "error", err)
			return nil, nil
		}
		return midnight(t, loc), nil

	case ValueTypeUUID:
		u, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("parse uuid: %w", err)
		}
		return u, nil

	default:
		return nil, fmt.Errorf("unsupported value type: %s", vt)
	}
}

// writeValue converts an in-memory value into its stored string. ok is false
// when nothing should be written for the value.
func writeValue(field string, vt ValueType, v any, loc *time.Location) (raw string, ok bool, err error) {
	switch vt {
	case ValueTypeString:
		if isNil(v) {
			return "", false, nil
		}
		return fmt.Sprint(v), true, nil

	case ValueTypeInteger:
		if isNil(v) {
			return "0", true, nil
		}
		if n, isInt := asInt64(v); isInt {
			return strconv.FormatInt(n, 10), true, nil
		}
		return "", false, NewTypeMismatchError(field, "an integer", v)

	case ValueTypeFloat:
		if isNil(v) {
			return "0", true, nil
		}
		switch f := v.(type) {
		case float64:
			return strconv.FormatFloat(f, 'g', -1, 64), true, nil
		case float32:
			return strconv.FormatFloat(float64(f), 'g', -1, 32), true, nil
		}
		if n, isInt := asInt64(v); isInt {
			return strconv.FormatInt(n, 10), true, nil
		}
		return "", false, NewTypeMismatchError(field, "a float", v)

	case ValueTypeBool:
		if truthy(v) {
			return "1", true, nil
		}
		return "0", true, nil

	case ValueTypeDateTime:
		if isNil(v) {
			return "", false, nil
		}
		t, isTime, nilPtr := asTime(v)
		if !isTime {
			return "", false, NewTypeMismatchError(field, "datetime object", v)
		}
		if nilPtr {
			return "", false, nil
		}
		return formatEpochMicros(t.UnixMicro()), true, nil

	case ValueTypeDate:
		if isNil(v) {
			return "", false, nil
		}
		t, isTime, nilPtr := asTime(v)
		if !isTime {
			return "", false, NewTypeMismatchError(field, "date object", v)
		}
		if nilPtr {
			return "", false, nil
		}
		return fmt.Sprintf("%d.000000", midnight(t, loc).Unix()), true, nil

	case ValueTypeUUID:
		switch u := v.(type) {
		case nil:
			return "", false, nil
		case uuid.UUID:
			return u.String(), true, nil
		case *uuid.UUID:
			if u == nil {
				return "", false, nil
			}
			return u.String(), true, nil
		}
		return "", false, NewTypeMismatchError(field, "uuid.UUID", v)

	default:
		return "", false, NewFormaError(ErrorTypeConfiguration, ErrCodeUnsupportedValueType,
			fmt.Sprintf("unsupported value type: %s", vt)).WithField(field)
	}
}

// midnight returns the start of t's calendar day in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func formatEpochMicros(us int64) string {
	sign := ""
	if us < 0 {
		sign = "-"
		us = -us
	}
	return fmt.Sprintf("%s%d.%06d", sign, us/microsPerSecond, us%microsPerSecond)
}

// parseEpoch reads "<seconds>[.<fraction>]" exactly to microsecond precision,
// falling back to float parsing for exponent forms.
func parseEpoch(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	intPart, frac, _ := strings.Cut(s, ".")
	if (intPart != "" || frac != "") && allDigits(intPart) && allDigits(frac) {
		sec := int64(0)
		if intPart != "" {
			var err error
			sec, err = strconv.ParseInt(intPart, 10, 64)
			if err != nil {
				return time.Time{}, err
			}
		}
		if sec > math.MaxInt64/microsPerSecond-1 {
			return time.Time{}, errors.New("timestamp out of range")
		}
		if len(frac) > 6 {
			frac = frac[:6]
		}
		micros := int64(0)
		if frac != "" {
			frac += strings.Repeat("0", 6-len(frac))
			micros, _ = strconv.ParseInt(frac, 10, 64)
		}
		total := sec*microsPerSecond + micros
		if neg {
			total = -total
		}
		return time.UnixMicro(total).In(loc), nil
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > float64(math.MaxInt64/microsPerSecond) {
		return time.Time{}, errors.New("timestamp out of range")
	}
	return time.UnixMicro(int64(math.Round(f * float64(microsPerSecond)))).In(loc), nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
