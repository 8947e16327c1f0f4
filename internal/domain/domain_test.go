package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice_UnmarshalNumberAndString(t *testing.T) {
	var items []struct {
		Price Price `json:"price"`
	}
	err := json.Unmarshal([]byte(`[{"price":180},{"price":"160.50"},{"price":"N/A"},{"price":null},{}]`), &items)
	require.NoError(t, err)
	require.Len(t, items, 5)

	d, err := items[0].Price.Decimal()
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.NewFromInt(180)))

	d, err = items[1].Price.Decimal()
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("160.5")))

	_, err = items[2].Price.Decimal()
	assert.ErrorIs(t, err, ErrNotNumeric)
	assert.Equal(t, "N/A", items[2].Price.String())

	assert.True(t, items[3].Price.IsMissing())
	assert.True(t, items[4].Price.IsMissing())
	assert.False(t, items[4].Price.Valid())
}

func TestPrice_MarshalKeepsInvalidText(t *testing.T) {
	out, err := json.Marshal([]Price{PriceFromFloat(8), PriceFromString("12.5"), PriceFromString("N/A"), {}})
	require.NoError(t, err)
	assert.JSONEq(t, `[8, 12.5, "N/A", null]`, string(out))
}

func TestQuantity_TolerantDecode(t *testing.T) {
	var qs []Quantity
	require.NoError(t, json.Unmarshal([]byte(`[2, "3", "abc", null, 4.7, true]`), &qs))
	assert.Equal(t, []Quantity{2, 3, 0, 0, 4, 0}, qs)
	assert.True(t, qs[0].Valid())
	assert.False(t, qs[2].Valid())
}

func TestParseQuantity(t *testing.T) {
	cases := map[string]Quantity{
		"5":     5,
		"0":     1,
		"-4":    1,
		"100":   99,
		"abc":   1,
		"":      1,
		"12abc": 12,
		" 7 ":   7,

		"99999999999999999999":  99,
		"-99999999999999999999": 1,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseQuantity(in), "input %q", in)
	}
}

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, Quantity(1), ClampQuantity(-10))
	assert.Equal(t, Quantity(1), ClampQuantity(0))
	assert.Equal(t, Quantity(42), ClampQuantity(42))
	assert.Equal(t, Quantity(99), ClampQuantity(1000))
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("  Shipped ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, st)

	_, err = ParseOrderStatus("lost")
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)
}

func TestOrder_UnknownStatusDecodes(t *testing.T) {
	var o Order
	require.NoError(t, json.Unmarshal([]byte(`{"id":"abc","paymentStatus":"teleported","totalAmount":"340"}`), &o))
	assert.Equal(t, OrderStatusUnknown, o.PaymentStatus)
	assert.Equal(t, "Unknown", o.PaymentStatus.Label())
	total, err := o.TotalAmount.Decimal()
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(340)))
}

func TestOrder_DecodesBackendFields(t *testing.T) {
	var o Order
	require.NoError(t, json.Unmarshal([]byte(`{
		"id":"ord-1","orderDate":"2025-05-01T10:00:00Z",
		"user":{"username":"meera","email":"m@example.com"},
		"paymentStatus":"processing","estimatedDeliveryDate":"2025-05-10"
	}`), &o))

	assert.Equal(t, "ord-1", o.ID)
	at, ok := o.OrderDate.Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC), at)
	eta := o.EstimatedDeliveryDate.Ptr()
	require.NotNil(t, eta)
	assert.Equal(t, time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC), *eta)
	require.NotNil(t, o.Customer)
	assert.Equal(t, "meera", o.Customer.Username)
}

func TestOrder_FallsBackToDocumentFields(t *testing.T) {
	var orders []Order
	require.NoError(t, json.Unmarshal([]byte(`[
		{"_id":"65f0c1","createdAt":"2025-05-01T10:00:00Z"},
		{"id":42,"_id":"ignored"},
		{"id":"o-3","estimatedDeliveryDate":"next tuesday"}
	]`), &orders))
	require.Len(t, orders, 3)

	assert.Equal(t, "65f0c1", orders[0].ID)
	assert.True(t, orders[0].OrderDate.Valid())
	assert.Equal(t, "42", orders[1].ID)
	assert.True(t, orders[1].OrderDate.IsZero())

	assert.False(t, orders[2].EstimatedDeliveryDate.Valid())
	assert.False(t, orders[2].EstimatedDeliveryDate.IsZero())
	assert.Nil(t, orders[2].EstimatedDeliveryDate.Ptr())
	assert.Equal(t, "next tuesday", orders[2].EstimatedDeliveryDate.String())
}

func TestDate_Unmarshal(t *testing.T) {
	var dates []Date
	require.NoError(t, json.Unmarshal([]byte(`["2025-05-10","2025-05-10T08:30:00.000Z",1746866400000,null,"soon",true]`), &dates))
	require.Len(t, dates, 6)

	assert.Equal(t, "2025-05-10", dates[0].Ptr().Format("2006-01-02"))
	assert.Equal(t, 8, dates[1].Ptr().Hour())
	assert.True(t, dates[2].Valid())
	assert.True(t, dates[3].IsZero())
	assert.False(t, dates[4].Valid())
	assert.False(t, dates[5].Valid())

	out, err := json.Marshal(dates[0])
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-05-10T00:00:00Z"`, string(out))
}

func TestAddress_MissingFields(t *testing.T) {
	a := Address{Line1: "12 MG Road", City: " ", State: "KA", Country: DefaultCountry}
	assert.Equal(t, []string{"city", "postalCode", "phone"}, a.MissingFields())

	a.City, a.PostalCode, a.Phone = "Bengaluru", "560001", "9999999999"
	assert.Empty(t, a.MissingFields())
}

func TestUserID_AcceptsNumberOrString(t *testing.T) {
	var ids []UserID
	require.NoError(t, json.Unmarshal([]byte(`[7, "65f0c1", null]`), &ids))
	assert.Equal(t, []UserID{"7", "65f0c1", ""}, ids)
}

func TestPaymentMethod_Supported(t *testing.T) {
	assert.True(t, PaymentMethodCOD.Supported())
	assert.False(t, PaymentMethodRazorpay.Supported())
	assert.False(t, PaymentMethod("bitcoin").Supported())
}
