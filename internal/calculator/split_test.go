package calculator

import (
	"fmt"
	"math"
	"testing"

	"github.com/mmynk/receiptsplit/internal/models"
)

const tolerance = 0.0001

func approx(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func people(names ...string) []models.Participant {
	out := make([]models.Participant, len(names))
	for i, n := range names {
		role := models.RoleEditor
		if i == 0 {
			role = models.RoleOwner
		}
		out[i] = models.Participant{ID: n, Name: n, Role: role}
	}
	return out
}

// scenarioSession is the pizza-and-beer receipt used across tests.
func scenarioSession() *models.Session {
	return &models.Session{
		ID:     "s1",
		Status: models.StatusAssigning,
		Items: []models.Item{
			{ID: "pizza", Name: "Pizza", Price: 10000, Quantity: 1, Mode: models.ModeIndividual},
			{ID: "beer", Name: "Beer", Price: 2000, Quantity: 3, Mode: models.ModeGrouped},
		},
		Participants: people("alice", "bob", "carol"),
		Assignments: models.Assignments{
			"pizza":       {{ParticipantID: "alice", Quantity: 1}},
			"beer_unit_0": {{ParticipantID: "alice", Quantity: 1}, {ParticipantID: "bob", Quantity: 1}},
			"beer_unit_1": {{ParticipantID: "bob", Quantity: 1}},
			"beer_unit_2": {{ParticipantID: "carol", Quantity: 1}},
		},
		Charges: []models.Charge{
			{ID: "tip", Name: "Tip", Value: 10, ValueType: models.ValuePercent, Distribution: models.DistributeProportional},
		},
	}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name         string
		session      *models.Session
		validateFunc func(t *testing.T, got map[string]*Breakdown)
	}{
		{
			name:    "receipt scenario with unit claims and proportional tip",
			session: scenarioSession(),
			validateFunc: func(t *testing.T, got map[string]*Breakdown) {
				want := map[string][3]float64{
					"alice": {11000, 1100, 12100},
					"bob":   {3000, 300, 3300},
					"carol": {2000, 200, 2200},
				}
				var grand float64
				for id, w := range want {
					b := got[id]
					if !approx(b.Subtotal, w[0]) {
						t.Errorf("%s subtotal = %v, want %v", id, b.Subtotal, w[0])
					}
					if !approx(b.ChargesTotal, w[1]) {
						t.Errorf("%s charges = %v, want %v", id, b.ChargesTotal, w[1])
					}
					if !approx(b.Total, w[2]) {
						t.Errorf("%s total = %v, want %v", id, b.Total, w[2])
					}
					grand += b.Total
				}
				if !approx(grand, 17600) {
					t.Errorf("grand total = %v, want 17600", grand)
				}
			},
		},
		{
			name: "unit claims supersede whole-item claims",
			session: &models.Session{
				Items:        []models.Item{{ID: "beer", Price: 2000, Quantity: 3}},
				Participants: people("alice", "bob"),
				Assignments: models.Assignments{
					"beer":        {{ParticipantID: "alice", Quantity: 3}},
					"beer_unit_1": {{ParticipantID: "bob", Quantity: 1}},
				},
			},
			validateFunc: func(t *testing.T, got map[string]*Breakdown) {
				if got["alice"].Subtotal != 0 {
					t.Errorf("alice subtotal = %v, want 0 (whole-item claim superseded)", got["alice"].Subtotal)
				}
				if !approx(got["bob"].Subtotal, 2000) {
					t.Errorf("bob subtotal = %v, want 2000", got["bob"].Subtotal)
				}
			},
		},
		{
			name: "zero-quantity unit claims do not supersede",
			session: &models.Session{
				Items:        []models.Item{{ID: "beer", Price: 2000, Quantity: 3}},
				Participants: people("alice", "bob"),
				Assignments: models.Assignments{
					"beer":        {{ParticipantID: "alice", Quantity: 2}},
					"beer_unit_1": {{ParticipantID: "bob", Quantity: 0}},
				},
			},
			validateFunc: func(t *testing.T, got map[string]*Breakdown) {
				if !approx(got["alice"].Subtotal, 4000) {
					t.Errorf("alice subtotal = %v, want 4000", got["alice"].Subtotal)
				}
				if got["bob"].Subtotal != 0 {
					t.Errorf("bob subtotal = %v, want 0", got["bob"].Subtotal)
				}
			},
		},
		{
			name: "shared whole-item claim splits the full line",
			session: &models.Session{
				Items:        []models.Item{{ID: "wine", Price: 3000, Quantity: 2}},
				Participants: people("alice", "bob", "carol"),
				Assignments: models.Assignments{
					"wine": {
						{ParticipantID: "alice", Quantity: 1},
						{ParticipantID: "bob", Quantity: 2},
						{ParticipantID: "carol", Quantity: 1},
					},
				},
			},
			validateFunc: func(t *testing.T, got map[string]*Breakdown) {
				for _, id := range []string{"alice", "bob", "carol"} {
					if !approx(got[id].Subtotal, 2000) {
						t.Errorf("%s subtotal = %v, want 2000", id, got[id].Subtotal)
					}
				}
			},
		},
		{
			name: "single claimant pays per claimed unit",
			session: &models.Session{
				Items:        []models.Item{{ID: "taco", Price: 1500, Quantity: 4}},
				Participants: people("alice", "bob"),
				Assignments:  models.Assignments{"taco": {{ParticipantID: "bob", Quantity: 3}}},
			},
			validateFunc: func(t *testing.T, got map[string]*Breakdown) {
				if !approx(got["bob"].Subtotal, 4500) {
					t.Errorf("bob subtotal = %v, want 4500", got["bob"].Subtotal)
				}
			},
		},
		{
			name: "nothing assigned falls back to even proportional split",
			session: &models.Session{
				Items:        []models.Item{{ID: "taco", Price: 1500, Quantity: 1}},
				Participants: people("alice", "bob"),
				Charges: []models.Charge{
					{ID: "fee", Name: "Fee", Value: 1000, ValueType: models.ValueFixed, Distribution: models.DistributeProportional},
				},
			},
			validateFunc: func(t *testing.T, got map[string]*Breakdown) {
				for _, id := range []string{"alice", "bob"} {
					b := got[id]
					if math.IsNaN(b.Total) || math.IsInf(b.Total, 0) {
						t.Fatalf("%s total is not finite: %v", id, b.Total)
					}
					if !approx(b.ChargesTotal, 500) {
						t.Errorf("%s charges = %v, want 500", id, b.ChargesTotal)
					}
				}
			},
		},
		{
			name: "per_person divides and fixed_per_person does not",
			session: &models.Session{
				Items:        []models.Item{{ID: "taco", Price: 1000, Quantity: 1}},
				Participants: people("alice", "bob"),
				Assignments:  models.Assignments{"taco": {{ParticipantID: "alice", Quantity: 1}}},
				Charges: []models.Charge{
					{ID: "split", Name: "Service", Value: 600, ValueType: models.ValueFixed, Distribution: models.DistributePerPerson},
					{ID: "cover", Name: "Cover", Value: 200, ValueType: models.ValueFixed, Distribution: models.DistributeFixedPerPerson},
				},
			},
			validateFunc: func(t *testing.T, got map[string]*Breakdown) {
				for _, id := range []string{"alice", "bob"} {
					b := got[id]
					if !approx(b.Charges[0].Amount, 300) {
						t.Errorf("%s per_person = %v, want 300", id, b.Charges[0].Amount)
					}
					if !approx(b.Charges[1].Amount, 200) {
						t.Errorf("%s fixed_per_person = %v, want 200", id, b.Charges[1].Amount)
					}
				}
			},
		},
		{
			name: "claims on unknown items and participants are ignored",
			session: &models.Session{
				Items:        []models.Item{{ID: "taco", Price: 1000, Quantity: 1}},
				Participants: people("alice"),
				Assignments: models.Assignments{
					"ghost": {{ParticipantID: "alice", Quantity: 1}},
					"taco":  {{ParticipantID: "zed", Quantity: 1}},
				},
			},
			validateFunc: func(t *testing.T, got map[string]*Breakdown) {
				if got["alice"].Subtotal != 0 {
					t.Errorf("alice subtotal = %v, want 0", got["alice"].Subtotal)
				}
				if _, ok := got["zed"]; ok {
					t.Error("unexpected breakdown for unknown participant")
				}
			},
		},
		{
			name:    "zero participants yields empty result",
			session: &models.Session{Items: []models.Item{{ID: "taco", Price: 1000, Quantity: 1}}},
			validateFunc: func(t *testing.T, got map[string]*Breakdown) {
				if len(got) != 0 {
					t.Errorf("expected no breakdowns, got %d", len(got))
				}
			},
		},
		{
			name: "malformed prices read as zero",
			session: &models.Session{
				Items:        []models.Item{{ID: "bad", Price: math.NaN(), Quantity: 1}, {ID: "neg", Price: -5, Quantity: 1}},
				Participants: people("alice"),
				Assignments: models.Assignments{
					"bad": {{ParticipantID: "alice", Quantity: 1}},
					"neg": {{ParticipantID: "alice", Quantity: 1}},
				},
			},
			validateFunc: func(t *testing.T, got map[string]*Breakdown) {
				if got["alice"].Subtotal != 0 {
					t.Errorf("alice subtotal = %v, want 0", got["alice"].Subtotal)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validateFunc(t, Calculate(tt.session))
		})
	}
}

func TestCalculate_DivisionSafety(t *testing.T) {
	s := &models.Session{
		Items:        []models.Item{{ID: "beer", Price: 2000, Quantity: 2}},
		Participants: people("alice", "bob"),
		Assignments: models.Assignments{
			"beer_unit_0": {{ParticipantID: "alice", Quantity: 0}, {ParticipantID: "bob", Quantity: 0}},
			"beer":        {},
		},
		Charges: []models.Charge{
			{ID: "tip", Name: "Tip", Value: 10, ValueType: models.ValuePercent, Distribution: models.DistributeProportional},
		},
	}

	for id, b := range Calculate(s) {
		for _, v := range []float64{b.Subtotal, b.ChargesTotal, b.Total} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("%s has non-finite value %v", id, v)
			}
		}
		if b.Subtotal != 0 {
			t.Errorf("%s subtotal = %v, want 0", id, b.Subtotal)
		}
	}
}

func TestCalculate_ProportionalConservation(t *testing.T) {
	s := scenarioSession()
	s.Charges = []models.Charge{
		{ID: "fee", Name: "Fee", Value: 777, ValueType: models.ValueFixed, Distribution: models.DistributeProportional},
		{ID: "tax", Name: "Tax", Value: 19, ValueType: models.ValuePercent, Distribution: models.DistributeProportional},
	}

	got := Calculate(s)
	var global float64
	for _, b := range got {
		global += b.Subtotal
	}

	bases := []float64{777, global * 19 / 100}
	for i, base := range bases {
		var sum float64
		for _, b := range got {
			sum += b.Charges[i].Amount
		}
		if !approx(sum, base) {
			t.Errorf("charge %d sums to %v, want %v", i, sum, base)
		}
	}
}

func TestCalculate_AssignUnassignIsIdempotent(t *testing.T) {
	s := scenarioSession()
	before := Calculate(s)

	next := s.Clone()
	next.Assignments.Set("pizza", "carol", 1)
	if mid := Calculate(next); approx(mid["alice"].Subtotal, before["alice"].Subtotal) {
		t.Fatal("expected assignment to change alice's share of the pizza")
	}
	next.Assignments.Set("pizza", "carol", 0)

	after := Calculate(next)
	for id, b := range before {
		if !approx(after[id].Subtotal, b.Subtotal) {
			t.Errorf("%s subtotal = %v after round trip, want %v", id, after[id].Subtotal, b.Subtotal)
		}
	}
}

func TestCalculate_DiscountFlipsSign(t *testing.T) {
	distributions := []models.Distribution{
		models.DistributeProportional,
		models.DistributePerPerson,
		models.DistributeFixedPerPerson,
	}

	for _, d := range distributions {
		t.Run(string(d), func(t *testing.T) {
			s := scenarioSession()
			s.Charges = []models.Charge{{ID: "c", Name: "C", Value: 15, ValueType: models.ValuePercent, Distribution: d}}
			plain := Calculate(s)

			s.Charges[0].IsDiscount = true
			discounted := Calculate(s)

			for id, b := range plain {
				if !approx(discounted[id].Charges[0].Amount, -b.Charges[0].Amount) {
					t.Errorf("%s: discount = %v, want %v", id, discounted[id].Charges[0].Amount, -b.Charges[0].Amount)
				}
			}
		})
	}
}

func TestComputeParticipantTotal(t *testing.T) {
	s := scenarioSession()

	got := ComputeParticipantTotal("bob", s)
	if !approx(got.Total, 3300) {
		t.Errorf("bob total = %v, want 3300", got.Total)
	}

	unknown := ComputeParticipantTotal("nobody", s)
	if unknown.Total != 0 || unknown.ParticipantID != "nobody" {
		t.Errorf("unknown participant breakdown = %+v, want zero", unknown)
	}
}

func TestSummarizeAndSettleUp(t *testing.T) {
	s := scenarioSession()
	s.Items = append(s.Items, models.Item{ID: "fries", Name: "Fries", Price: 500, Quantity: 2})
	s.Total = 17000

	breakdowns := Calculate(s)
	sum := Summarize(s, breakdowns)

	if !approx(sum.AssignedSubtotal, 16000) {
		t.Errorf("assigned subtotal = %v, want 16000", sum.AssignedSubtotal)
	}
	if !approx(sum.UnassignedSubtotal, 1000) {
		t.Errorf("unassigned subtotal = %v, want 1000", sum.UnassignedSubtotal)
	}
	if !approx(sum.GrandTotal, 17600) {
		t.Errorf("grand total = %v, want 17600", sum.GrandTotal)
	}
	if !approx(sum.VerificationDelta, 600) {
		t.Errorf("verification delta = %v, want 600", sum.VerificationDelta)
	}

	edges := SettleUp(s, breakdowns)
	if len(edges) != 2 {
		t.Fatalf("expected 2 debts, got %d", len(edges))
	}
	if edges[0].From != "bob" || edges[0].To != "alice" || !approx(edges[0].Amount, 3300) {
		t.Errorf("first debt = %+v, want bob -> alice 3300", edges[0])
	}
	if edges[1].From != "carol" || !approx(edges[1].Amount, 2200) {
		t.Errorf("second debt = %+v, want carol -> alice 2200", edges[1])
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	s := &models.Session{
		ID:           "det",
		Participants: people("a", "b"),
		Assignments:  models.Assignments{},
		Charges: []models.Charge{
			{ID: "tax", Name: "Tax", Value: 7.25, ValueType: models.ValuePercent, Distribution: models.DistributeProportional},
		},
	}
	for i := 0; i < 40; i++ {
		id := fmt.Sprintf("item%02d", i)
		s.Items = append(s.Items, models.Item{ID: id, Name: id, Price: 0.1 * float64(i+1) / 3, Quantity: 1, Mode: models.ModeGrouped})
		s.Assignments[id] = []models.Assignment{{ParticipantID: "a", Quantity: 1}, {ParticipantID: "b", Quantity: 1}}
	}

	first := Calculate(s)
	firstSum := Summarize(s, first)
	for run := 0; run < 200; run++ {
		got := Calculate(s)
		for _, id := range []string{"a", "b"} {
			if math.Float64bits(got[id].Subtotal) != math.Float64bits(first[id].Subtotal) ||
				math.Float64bits(got[id].Total) != math.Float64bits(first[id].Total) {
				t.Fatalf("run %d: %s = %.20f/%.20f, want %.20f/%.20f", run, id,
					got[id].Subtotal, got[id].Total, first[id].Subtotal, first[id].Total)
			}
		}
		if sum := Summarize(s, got); math.Float64bits(sum.GrandTotal) != math.Float64bits(firstSum.GrandTotal) {
			t.Fatalf("run %d: grand total = %.20f, want %.20f", run, sum.GrandTotal, firstSum.GrandTotal)
		}
	}
}
