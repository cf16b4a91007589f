package calculator

import (
	"sort"

	"github.com/mmynk/receiptsplit/internal/models"
)

// settleThreshold avoids emitting debts that are floating point noise.
const settleThreshold = 0.01

// Summary aggregates a session's breakdowns.
type Summary struct {
	// AssignedSubtotal is the sum of every participant's subtotal.
	AssignedSubtotal float64

	// UnassignedSubtotal is the raw item value nobody has claimed yet.
	UnassignedSubtotal float64

	// ChargesTotal is the sum of every participant's charges.
	ChargesTotal float64

	// GrandTotal is what the group owes in aggregate.
	GrandTotal float64

	// VerificationDelta is GrandTotal minus the receipt's printed total.
	// Zero when the session carries no reference total.
	VerificationDelta float64
}

// DebtEdge is an amount one participant owes another.
type DebtEdge struct {
	From   string // participant who owes
	To     string // participant who is owed
	Amount float64
}

// Summarize aggregates the breakdowns of s.
func Summarize(s *models.Session, breakdowns map[string]*Breakdown) Summary {
	var sum Summary
	if s == nil {
		return sum
	}
	for _, p := range s.Participants {
		b, ok := breakdowns[p.ID]
		if !ok {
			continue
		}
		sum.AssignedSubtotal += b.Subtotal
		sum.ChargesTotal += b.ChargesTotal
		sum.GrandTotal += b.Total
	}

	var itemsTotal float64
	for _, it := range s.Items {
		itemsTotal += sanitize(it.Price) * sanitize(float64(it.Quantity))
	}
	sum.UnassignedSubtotal = itemsTotal - sum.AssignedSubtotal
	if sum.UnassignedSubtotal < settleThreshold {
		sum.UnassignedSubtotal = 0
	}

	if s.Total > 0 {
		sum.VerificationDelta = sum.GrandTotal - s.Total
	}
	return sum
}

// SettleUp lists what every editor owes the owner, who paid the receipt.
// Edges are ordered by participant order in the session.
func SettleUp(s *models.Session, breakdowns map[string]*Breakdown) []DebtEdge {
	if s == nil {
		return nil
	}
	owner, ok := s.Owner()
	if !ok {
		return nil
	}

	order := make(map[string]int, len(s.Participants))
	for i, p := range s.Participants {
		order[p.ID] = i
	}

	var edges []DebtEdge
	for id, b := range breakdowns {
		if id == owner.ID || b.Total < settleThreshold {
			continue
		}
		edges = append(edges, DebtEdge{From: id, To: owner.ID, Amount: b.Total})
	}
	sort.Slice(edges, func(i, j int) bool {
		return order[edges[i].From] < order[edges[j].From]
	})
	return edges
}
