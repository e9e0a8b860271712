package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_EncodeDecodeItems(t *testing.T) {
	o := &Order{Lines: []CartLine{
		{ProductID: "p1", Name: "Tee", Size: SizeL, Quantity: 2, UnitPrice: 150000},
	}}
	require.NoError(t, o.EncodeItems())
	assert.Contains(t, o.Items, `"product_id":"p1"`)

	restored := &Order{Items: o.Items}
	require.NoError(t, restored.DecodeItems())
	assert.Equal(t, o.Lines, restored.Lines)
}

func TestOrder_DecodeItems_invalidJSON(t *testing.T) {
	o := &Order{Items: "{"}
	assert.Error(t, o.DecodeItems())
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentCOD.Valid())
	assert.True(t, PaymentBankTransfer.Valid())
	assert.False(t, PaymentMethod("card").Valid())
}
