package stats

import (
	"database/sql/driver"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Num is a float that may be unknown. The zero value is unknown, so a
// field nobody filled in never masquerades as a measured 0.
type Num struct {
	V     float64
	Valid bool
}

// Unknown is the explicit sentinel for a missing measurement.
var Unknown = Num{}

// Known wraps a measured value. NaN and ±Inf collapse to Unknown.
func Known(v float64) Num {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unknown
	}
	return Num{V: v, Valid: true}
}

// Or returns the value, or fallback when unknown.
func (n Num) Or(fallback float64) float64 {
	if !n.Valid {
		return fallback
	}
	return n.V
}

func (n Num) String() string {
	if !n.Valid {
		return "unknown"
	}
	return strconv.FormatFloat(n.V, 'f', -1, 64)
}

// MarshalText writes unknown values as an empty cell.
func (n Num) MarshalText() ([]byte, error) {
	if !n.Valid {
		return []byte{}, nil
	}
	return []byte(strconv.FormatFloat(n.V, 'f', -1, 64)), nil
}

// UnmarshalText accepts an empty cell or "nan" as unknown.
func (n *Num) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "unknown") {
		*n = Unknown
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return eris.Wrapf(err, "stats: parse %q", s)
	}
	*n = Known(v)
	return nil
}

// Value implements driver.Valuer; unknown is stored as NULL.
func (n Num) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.V, nil
}

// Scan implements sql.Scanner.
func (n *Num) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = Unknown
	case float64:
		*n = Known(v)
	case int64:
		*n = Known(float64(v))
	case []byte:
		return n.UnmarshalText(v)
	case string:
		return n.UnmarshalText([]byte(v))
	default:
		return eris.Errorf("stats: cannot scan %T into Num", src)
	}
	return nil
}

// Dist is a (mean, std, count) summary of one batch of observations.
type Dist struct {
	Mean Num
	Std  Num
	N    float64
}
