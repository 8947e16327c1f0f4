package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	MinQuantity = 1
	MaxQuantity = 99
)

// Quantity is a line item count. Decoding is tolerant: numbers and numeric
// strings are accepted, anything else decodes to 0, which Valid reports as
// invalid. Callers decide how to coerce.
type Quantity int

func (q Quantity) Valid() bool {
	return q >= MinQuantity && q <= MaxQuantity
}

func (q Quantity) Int() int {
	return int(q)
}

// ClampQuantity forces n into [MinQuantity, MaxQuantity].
func ClampQuantity(n int) Quantity {
	if n < MinQuantity {
		return MinQuantity
	}
	if n > MaxQuantity {
		return MaxQuantity
	}
	return Quantity(n)
}

// ParseQuantity reads user-entered text the way a number input does:
// leading integer digits count, anything unparsable falls back to 1.
// The result is clamped, including digit runs too long for an int.
func ParseQuantity(s string) Quantity {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	n, err := strconv.Atoi(s[:end])
	if errors.Is(err, strconv.ErrRange) {
		// Atoi saturates to the nearest representable int on overflow.
		return ClampQuantity(n)
	}
	if err != nil || n == 0 {
		return MinQuantity
	}
	return ClampQuantity(n)
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			*q = 0
			return nil
		}
		*q = Quantity(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil || math.IsNaN(f) {
		*q = 0
		return nil
	}
	*q = Quantity(int(math.Trunc(f)))
	return nil
}
