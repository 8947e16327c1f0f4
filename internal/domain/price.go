package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNotNumeric = errors.New("value is not numeric")

// Price is a monetary amount as it arrived on the wire. The catalog and older
// stored carts send prices either as JSON numbers or as numeric strings, and
// occasionally as garbage ("N/A"). Price keeps the raw text so that
// validation can happen where the value is used.
type Price struct {
	raw string
}

func NewPrice(d decimal.Decimal) Price {
	return Price{raw: d.String()}
}

// PriceFromString wraps user or fixture text without validating it.
func PriceFromString(s string) Price {
	return Price{raw: strings.TrimSpace(s)}
}

func PriceFromFloat(f float64) Price {
	return NewPrice(decimal.NewFromFloat(f))
}

// Decimal parses the price. A missing or non-numeric price returns ErrNotNumeric.
func (p Price) Decimal() (decimal.Decimal, error) {
	if p.raw == "" {
		return decimal.Zero, fmt.Errorf("price is missing: %w", ErrNotNumeric)
	}
	d, err := decimal.NewFromString(p.raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %q: %w", p.raw, ErrNotNumeric)
	}
	return d, nil
}

func (p Price) Valid() bool {
	_, err := p.Decimal()
	return err == nil
}

func (p Price) IsMissing() bool {
	return p.raw == ""
}

func (p Price) String() string {
	return p.raw
}

// MarshalJSON writes valid prices as numbers and anything else as a string,
// so a round trip through storage never loses the original text.
func (p Price) MarshalJSON() ([]byte, error) {
	if p.raw == "" {
		return []byte("null"), nil
	}
	if d, err := p.Decimal(); err == nil {
		return []byte(d.String()), nil
	}
	return json.Marshal(p.raw)
}

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		p.raw = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		p.raw = strings.TrimSpace(s)
	default:
		p.raw = string(data)
	}
	return nil
}
