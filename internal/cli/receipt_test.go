package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/receiptsplit/internal/models"
)

const scenarioReceipt = `
owner: Alice
subtotal: 16000
total: 17600
items:
  - name: Pizza
    price: 10000
  - name: Beer
    price: 2000
    quantity: 3
    mode: grouped
charges:
  - name: Tip
    value: 10
  - name: Coupon
    value: 500
    type: fixed
    distribution: per_person
    discount: true
`

func TestLoadReceipt(t *testing.T) {
	rc, err := LoadReceipt(strings.NewReader(scenarioReceipt))
	require.NoError(t, err)

	in := rc.NewSession()
	assert.Equal(t, "Alice", in.OwnerName)
	assert.Equal(t, 16000.0, in.Subtotal)
	assert.Equal(t, 17600.0, in.Total)

	require.Len(t, in.Items, 2)
	assert.Equal(t, models.Item{Name: "Pizza", Price: 10000, Quantity: 1, Mode: models.ModeIndividual}, in.Items[0])
	assert.Equal(t, models.Item{Name: "Beer", Price: 2000, Quantity: 3, Mode: models.ModeGrouped}, in.Items[1])

	require.Len(t, in.Charges, 2)
	assert.Equal(t, models.ValuePercent, in.Charges[0].ValueType)
	assert.Equal(t, models.DistributeProportional, in.Charges[0].Distribution)
	assert.False(t, in.Charges[0].IsDiscount)
	assert.Equal(t, models.ValueFixed, in.Charges[1].ValueType)
	assert.Equal(t, models.DistributePerPerson, in.Charges[1].Distribution)
	assert.True(t, in.Charges[1].IsDiscount)
}

func TestLoadReceipt_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "missing owner", doc: "items: []\n", wantErr: "owner"},
		{name: "unknown field", doc: "owner: A\ncolour: red\n", wantErr: "decode receipt"},
		{name: "negative price", doc: "owner: A\nitems:\n  - name: X\n    price: -1\n", wantErr: "item 1"},
		{name: "blank item name", doc: "owner: A\nitems:\n  - name: ' '\n    price: 1\n", wantErr: "item 1"},
		{name: "bad mode", doc: "owner: A\nitems:\n  - name: X\n    price: 1\n    mode: shared\n", wantErr: "unknown item mode"},
		{name: "bad distribution", doc: "owner: A\ncharges:\n  - name: Tax\n    value: 8\n    distribution: random\n", wantErr: "unknown distribution"},
		{name: "negative total", doc: "owner: A\ntotal: -5\n", wantErr: "negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadReceipt(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadReceiptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioReceipt), 0o644))

	rc, err := LoadReceiptFile(path)
	require.NoError(t, err)
	assert.Len(t, rc.Items, 2)

	_, err = LoadReceiptFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
