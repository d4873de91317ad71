package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id, price string, qty int) Item {
	return Item{ProductID: id, Name: id, Price: decimal.RequireFromString(price), Quantity: qty}
}

// ============================================
// TotalMinorUnits Tests
// ============================================

func TestTotalMinorUnits(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  int64
	}{
		{"empty cart", nil, 0},
		{"single item", []Item{item("p1", "10.50", 2)}, 2100},
		{"whole units", []Item{item("p1", "5.00", 3)}, 1500},
		{"mixed lines", []Item{item("p1", "19.99", 3), item("p2", "0.01", 1)}, 5998},
		{"binary float trap", []Item{item("p1", "0.1", 3)}, 30},
		{"half cent rounds up", []Item{item("p1", "1.005", 1)}, 101},
		{"sub cent accumulates", []Item{item("p1", "0.333", 3)}, 100},
		{"large quantity", []Item{item("p1", "3200", 250)}, 80000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TotalMinorUnits(tt.items))
		})
	}
}

func TestItem_Validate(t *testing.T) {
	assert.NoError(t, item("p1", "1.00", 1).Validate())
	assert.ErrorIs(t, item("", "1.00", 1).Validate(), ErrInvalidItem)
	assert.ErrorIs(t, item("p1", "1.00", 0).Validate(), ErrInvalidItem)
	assert.ErrorIs(t, item("p1", "-1.00", 1).Validate(), ErrInvalidItem)
}

// ============================================
// Address Tests
// ============================================

func TestAddress_Validate(t *testing.T) {
	valid := Address{Line1: "12 MG Road", City: "Pune", PostalCode: "411001", Country: "IN"}
	require.NoError(t, valid.Validate())

	noLine1 := valid
	noLine1.Line1 = "   "
	err := noLine1.Validate()
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Contains(t, err.Error(), "line1")

	noPostal := valid
	noPostal.PostalCode = ""
	err = noPostal.Validate()
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Contains(t, err.Error(), "postalCode")

	err = Address{}.Validate()
	assert.Contains(t, err.Error(), "line1 and postalCode")
}

// ============================================
// PaymentMethod Tests
// ============================================

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		in   string
		want PaymentMethod
	}{
		{"online", PaymentOnline},
		{"Online Payment", PaymentOnline},
		{"cod", PaymentCashOnDelivery},
		{" COD ", PaymentCashOnDelivery},
		{"Cash on Delivery", PaymentCashOnDelivery},
	}
	for _, tt := range tests {
		got, err := ParsePaymentMethod(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParsePaymentMethod("upi")
	assert.ErrorIs(t, err, ErrUnknownPaymentMethod)
}

func TestPaymentMethod_Literal(t *testing.T) {
	assert.Equal(t, "Online Payment", PaymentOnline.Literal())
	assert.Equal(t, "Cash on Delivery", PaymentCashOnDelivery.Literal())
}

func TestPayload_Clone(t *testing.T) {
	p := Payload{Items: []Item{item("p1", "1.00", 1)}}
	c := p.Clone()
	c.Items[0].Quantity = 9

	assert.Equal(t, 1, p.Items[0].Quantity)
}
