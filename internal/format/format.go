// Package format turns loosely typed numeric fields into display strings.
// Values may arrive as numbers, numeric strings, json.Number, pointers to
// any of those, or not at all; every function degrades to a fixed fallback
// instead of failing.
package format

import (
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Fallback display values.
const (
	NoPrice    = "0.00"
	NoRating   = "N/A"
	NoDistance = ""
)

// Price formats v with two decimals. Zero is a real price and is shown.
func Price(v any) string {
	f, ok := toFloat(v)
	if !ok || math.IsInf(f, 0) {
		return NoPrice
	}
	return fixed(f, 2)
}

// PriceCents formats an amount in minor currency units.
func PriceCents(cents int64) string {
	return Price(float64(cents) / 100)
}

// Rating formats v with one decimal. A rating of zero or below means none was given.
func Rating(v any) string {
	f, ok := toFloat(v)
	if !ok || f <= 0 || math.IsInf(f, 1) {
		return NoRating
	}
	return fixed(f, 1)
}

// Distance formats v in kilometers with one decimal. A distance of zero or
// below is treated as not computed and renders empty.
func Distance(v any) string {
	f, ok := toFloat(v)
	if !ok || f <= 0 || math.IsInf(f, 1) {
		return NoDistance
	}
	return fixed(f, 1)
}

// Number returns v as a float64, or 0 when it is missing or not a number.
func Number(v any) float64 {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return f
}

// fixed formats f with the given number of decimals, rounding halves away
// from zero (4.25 shows as 4.3). A result of zero never carries a sign.
func fixed(f float64, decimals int) string {
	scale := math.Pow10(decimals)
	if r := math.Round(f*scale) / scale; !math.IsInf(r, 0) {
		f = r
	}
	if f == 0 {
		f = 0
	}
	return strconv.FormatFloat(f, 'f', decimals, 64)
}

// toFloat coerces v, reporting false for nil, blank strings, booleans,
// unparseable values and NaN.
func toFloat(v any) (float64, bool) {
	v, ok := deref(v)
	if !ok {
		return 0, false
	}

	switch x := v.(type) {
	case bool:
		return 0, false
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return 0, false
		}
		v = x
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// deref follows pointers down to a concrete value. Named numeric and string
// types are converted to their underlying kinds so cast can handle them.
func deref(v any) (any, bool) {
	if v == nil {
		return nil, false
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		return rv.String(), true
	default:
		return rv.Interface(), true
	}
}
