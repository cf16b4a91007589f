package calculator

import (
	"math"

	"github.com/mmynk/receiptsplit/internal/models"
)

// ChargeAmount is one charge's share for one participant.
// Discounts are negative.
type ChargeAmount struct {
	ChargeID string
	Name     string
	Amount   float64
}

// Breakdown is the calculated amount one participant owes.
type Breakdown struct {
	ParticipantID string

	// Subtotal is the sum of this participant's item shares.
	Subtotal float64

	// ChargesTotal is the sum of Charges (negative for net discounts).
	ChargesTotal float64

	// Total is Subtotal + ChargesTotal.
	Total float64

	// Charges lists every session charge in session order.
	Charges []ChargeAmount
}

// Calculate computes every participant's breakdown for the session.
//
// Algorithm:
//   - Items with any unit-level claim are only counted at unit granularity;
//     their whole-item claims are ignored.
//   - Unit key: item.price / sharers.
//   - Whole-item key with several sharers: price × quantity / sharers.
//   - Whole-item key with one sharer: price × claimed quantity.
//   - Charges are computed against the sum of all participant subtotals, so
//     unclaimed items are billed to nobody.
//
// Calculate never fails. Zero participants yield an empty map.
func Calculate(s *models.Session) map[string]*Breakdown {
	result := make(map[string]*Breakdown)
	if s == nil || len(s.Participants) == 0 {
		return result
	}

	for _, p := range s.Participants {
		result[p.ID] = &Breakdown{ParticipantID: p.ID}
	}

	items := make(map[string]models.Item, len(s.Items))
	for _, it := range s.Items {
		items[it.ID] = it
	}
	superseded := unitSuperseded(s.Assignments)

	// Keys are visited in sorted order so float sums are reproducible.
	for _, key := range s.Assignments.Keys() {
		claims := s.Assignments[key]
		itemID, _, isUnit := models.ParseKey(key)
		item, ok := items[itemID]
		if !ok {
			continue
		}
		if !isUnit && superseded[itemID] {
			continue
		}

		sharers := s.Assignments.Sharers(key)
		for _, claim := range claims {
			qty := sanitize(claim.Quantity)
			if qty <= 0 {
				continue
			}
			b, exists := result[claim.ParticipantID]
			if !exists {
				continue
			}
			b.Subtotal += lineShare(item, qty, sharers, isUnit)
		}
	}

	var globalSubtotal float64
	for _, p := range s.Participants {
		globalSubtotal += result[p.ID].Subtotal
	}

	count := float64(len(s.Participants))
	for _, p := range s.Participants {
		b := result[p.ID]
		b.Charges = make([]ChargeAmount, 0, len(s.Charges))
		for _, c := range s.Charges {
			amount := chargeShare(c, b.Subtotal, globalSubtotal, count)
			b.Charges = append(b.Charges, ChargeAmount{ChargeID: c.ID, Name: c.Name, Amount: amount})
			b.ChargesTotal += amount
		}
		b.Total = b.Subtotal + b.ChargesTotal
	}

	return result
}

// ComputeParticipantTotal returns one participant's breakdown. Unknown
// participants get a zero breakdown. Safe to call on every render.
func ComputeParticipantTotal(participantID string, s *models.Session) Breakdown {
	if b, ok := Calculate(s)[participantID]; ok {
		return *b
	}
	return Breakdown{ParticipantID: participantID}
}

// unitSuperseded returns the ids of items that have at least one unit-level
// claim with a positive quantity.
func unitSuperseded(a models.Assignments) map[string]bool {
	out := make(map[string]bool)
	for _, key := range a.Keys() {
		claims := a[key]
		itemID, _, isUnit := models.ParseKey(key)
		if !isUnit {
			continue
		}
		for _, c := range claims {
			if c.Quantity > 0 {
				out[itemID] = true
				break
			}
		}
	}
	return out
}

// lineShare is one claimant's share of a key.
func lineShare(item models.Item, claimed float64, sharers int, isUnit bool) float64 {
	price := sanitize(item.Price)
	if isUnit {
		return price / float64(max(1, sharers))
	}
	if sharers > 1 {
		return price * sanitize(float64(item.Quantity)) / float64(sharers)
	}
	return price * claimed
}

// chargeShare is one participant's amount for charge c.
func chargeShare(c models.Charge, subtotal, globalSubtotal, participants float64) float64 {
	value := sanitize(c.Value)
	base := value
	if c.ValueType == models.ValuePercent {
		base = globalSubtotal * value / 100
	}

	var amount float64
	switch c.Distribution {
	case models.DistributePerPerson:
		amount = base / participants
	case models.DistributeFixedPerPerson:
		// Every participant is charged the full amount.
		amount = base
	default:
		ratio := 1 / participants
		if globalSubtotal > 0 {
			ratio = subtotal / globalSubtotal
		}
		amount = base * ratio
	}

	if c.IsDiscount {
		amount = -amount
	}
	return amount
}

// sanitize reads negative, NaN and infinite inputs as zero.
func sanitize(v float64) float64 {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
