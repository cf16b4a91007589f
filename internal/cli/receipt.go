package cli

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mmynk/receiptsplit/internal/client"
	"github.com/mmynk/receiptsplit/internal/models"
)

// Receipt is the YAML document accepted by `splitctl create`.
//
//	owner: Alice
//	subtotal: 16000
//	total: 17600
//	items:
//	  - name: Beer
//	    price: 2000
//	    quantity: 3
//	    mode: grouped
//	charges:
//	  - name: Tip
//	    value: 10
//	    type: percent
type Receipt struct {
	Owner        string          `yaml:"owner"`
	NumberFormat string          `yaml:"number_format"`
	Subtotal     float64         `yaml:"subtotal"`
	Total        float64         `yaml:"total"`
	Items        []ReceiptItem   `yaml:"items"`
	Charges      []ReceiptCharge `yaml:"charges"`
}

// ReceiptItem is one line of a receipt file.
type ReceiptItem struct {
	Name     string  `yaml:"name"`
	Price    float64 `yaml:"price"`
	Quantity int     `yaml:"quantity"`
	Mode     string  `yaml:"mode"`
}

// ReceiptCharge is one tip, tax, fee or discount of a receipt file.
type ReceiptCharge struct {
	Name         string  `yaml:"name"`
	Value        float64 `yaml:"value"`
	Type         string  `yaml:"type"`
	Distribution string  `yaml:"distribution"`
	Discount     bool    `yaml:"discount"`
}

// LoadReceiptFile reads and validates a receipt file.
func LoadReceiptFile(path string) (*Receipt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open receipt: %w", err)
	}
	defer f.Close()
	return LoadReceipt(f)
}

// LoadReceipt decodes a receipt document. Missing quantities default to 1,
// missing modes to individual, missing value types to percent and missing
// distributions to proportional.
func LoadReceipt(r io.Reader) (*Receipt, error) {
	var rc Receipt
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rc); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}

	for i := range rc.Items {
		if rc.Items[i].Quantity == 0 {
			rc.Items[i].Quantity = 1
		}
		if rc.Items[i].Mode == "" {
			rc.Items[i].Mode = string(models.ModeIndividual)
		}
	}
	for i := range rc.Charges {
		if rc.Charges[i].Type == "" {
			rc.Charges[i].Type = string(models.ValuePercent)
		}
		if rc.Charges[i].Distribution == "" {
			rc.Charges[i].Distribution = string(models.DistributeProportional)
		}
	}

	if err := rc.validate(); err != nil {
		return nil, err
	}
	return &rc, nil
}

func (rc *Receipt) validate() error {
	if err := models.ValidateName(rc.Owner); err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	if rc.Subtotal < 0 || rc.Total < 0 {
		return fmt.Errorf("reference totals cannot be negative")
	}
	for i, it := range rc.Items {
		if err := models.ValidateItem(it.model()); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
	}
	for _, c := range rc.Charges {
		if err := models.ValidateCharge(c.model()); err != nil {
			return err
		}
	}
	return nil
}

func (it ReceiptItem) model() models.Item {
	return models.Item{
		Name:     it.Name,
		Price:    it.Price,
		Quantity: it.Quantity,
		Mode:     models.ItemMode(it.Mode),
	}
}

func (c ReceiptCharge) model() models.Charge {
	return models.Charge{
		Name:         c.Name,
		Value:        c.Value,
		ValueType:    models.ValueType(c.Type),
		IsDiscount:   c.Discount,
		Distribution: models.Distribution(c.Distribution),
	}
}

// NewSession converts the receipt into a CreateSession input.
func (rc *Receipt) NewSession() client.NewSession {
	in := client.NewSession{
		OwnerName:    rc.Owner,
		Subtotal:     rc.Subtotal,
		Total:        rc.Total,
		NumberFormat: rc.NumberFormat,
	}
	for _, it := range rc.Items {
		in.Items = append(in.Items, it.model())
	}
	for _, c := range rc.Charges {
		in.Charges = append(in.Charges, c.model())
	}
	return in
}
