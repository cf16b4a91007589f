package models

import "testing"

func TestParseKey(t *testing.T) {
	tests := []struct {
		key      string
		wantItem string
		wantIdx  int
		wantUnit bool
	}{
		{"pizza", "pizza", 0, false},
		{"beer_unit_0", "beer", 0, true},
		{"beer_unit_12", "beer", 12, true},
		{"my_item_unit_2", "my_item", 2, true},
		{"beer_unit_x", "beer_unit_x", 0, false},
		{"_unit_1", "_unit_1", 0, false},
		{"beer_unit_-1", "beer_unit_-1", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			item, idx, unit := ParseKey(tt.key)
			if item != tt.wantItem || idx != tt.wantIdx || unit != tt.wantUnit {
				t.Errorf("ParseKey(%q) = (%q, %d, %v), want (%q, %d, %v)",
					tt.key, item, idx, unit, tt.wantItem, tt.wantIdx, tt.wantUnit)
			}
		})
	}

	if got := UnitKey("beer", 2); got != "beer_unit_2" {
		t.Errorf("UnitKey = %q, want beer_unit_2", got)
	}
}

func TestAssignmentsSet(t *testing.T) {
	a := Assignments{}

	a.Set("pizza", "alice", 1)
	a.Set("pizza", "bob", 2)
	if got := a.Sharers("pizza"); got != 2 {
		t.Fatalf("Sharers = %d, want 2", got)
	}

	a.Set("pizza", "bob", 3)
	if got := a.Quantity("pizza", "bob"); got != 3 {
		t.Errorf("bob quantity = %v, want 3", got)
	}

	a.Set("pizza", "alice", 0)
	a.Set("pizza", "bob", 0)
	if _, ok := a["pizza"]; ok {
		t.Error("expected empty key to be pruned")
	}
}

func TestAssignmentsRemoveItemAndParticipant(t *testing.T) {
	a := Assignments{
		"beer":        {{ParticipantID: "alice", Quantity: 1}},
		"beer_unit_0": {{ParticipantID: "alice", Quantity: 1}, {ParticipantID: "bob", Quantity: 1}},
		"beer_unit_1": {{ParticipantID: "bob", Quantity: 1}},
		"pizza":       {{ParticipantID: "bob", Quantity: 1}},
	}

	a.RemoveParticipant("bob")
	if _, ok := a["beer_unit_1"]; ok {
		t.Error("expected beer_unit_1 to be pruned after removing bob")
	}
	if got := a.Sharers("beer_unit_0"); got != 1 {
		t.Errorf("beer_unit_0 sharers = %d, want 1", got)
	}

	a.RemoveItem("beer")
	if len(a) != 0 {
		t.Errorf("expected no keys left, got %v", a)
	}
}

func TestAssignmentsPruneUnits(t *testing.T) {
	a := Assignments{
		"beer":        {{ParticipantID: "alice", Quantity: 1}},
		"beer_unit_0": {{ParticipantID: "alice", Quantity: 1}},
		"beer_unit_1": {{ParticipantID: "bob", Quantity: 1}},
		"beer_unit_2": {{ParticipantID: "carol", Quantity: 1}},
		"wine_unit_2": {{ParticipantID: "bob", Quantity: 1}},
	}

	a.PruneUnits(Item{ID: "beer", Quantity: 1})

	want := []string{"beer", "beer_unit_0", "wine_unit_2"}
	got := a.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keys = %v, want %v", got, want)
			break
		}
	}
}

func TestSessionCloneIsIndependent(t *testing.T) {
	s := &Session{
		ID:           "s1",
		Items:        []Item{{ID: "pizza", Name: "Pizza", Price: 10, Quantity: 1}},
		Participants: []Participant{{ID: "alice", Name: "Alice", Role: RoleOwner}},
		Assignments:  Assignments{"pizza": {{ParticipantID: "alice", Quantity: 1}}},
	}

	c := s.Clone()
	c.Items[0].Name = "Calzone"
	c.Assignments.Set("pizza", "alice", 0)
	c.RemoveParticipant("alice")

	if s.Items[0].Name != "Pizza" {
		t.Errorf("original item renamed to %q", s.Items[0].Name)
	}
	if s.Assignments.Quantity("pizza", "alice") != 1 {
		t.Error("original assignment changed")
	}
	if len(s.Participants) != 1 {
		t.Error("original participants changed")
	}
}

func TestReplaceItemID(t *testing.T) {
	s := &Session{
		Items: []Item{{ID: "temp-1", Name: "Beer", Price: 2, Quantity: 2}},
		Assignments: Assignments{
			"temp-1":        {{ParticipantID: "alice", Quantity: 1}},
			"temp-1_unit_1": {{ParticipantID: "bob", Quantity: 1}},
		},
	}

	s.ReplaceItemID("temp-1", "item-9")

	if s.Items[0].ID != "item-9" {
		t.Errorf("item id = %q, want item-9", s.Items[0].ID)
	}
	if s.Assignments.Quantity("item-9", "alice") != 1 {
		t.Error("whole-item claim not moved")
	}
	if s.Assignments.Quantity("item-9_unit_1", "bob") != 1 {
		t.Error("unit claim not moved")
	}
	if _, ok := s.Assignments["temp-1"]; ok {
		t.Error("temporary key still present")
	}
}
