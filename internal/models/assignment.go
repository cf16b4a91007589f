package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// unitSeparator joins an item id and a unit index in a unit-level key.
const unitSeparator = "_unit_"

// Assignment is a quantity claim by one participant against one key.
type Assignment struct {
	ParticipantID string
	Quantity      float64
}

// Assignments maps an assignment key to its claims.
//
// A key is either an item id (whole-item claim) or "{itemId}_unit_{index}"
// (a claim on one physical unit). When an item has any unit-level claim, its
// whole-item claims are ignored by the calculator.
type Assignments map[string][]Assignment

// UnitKey builds the assignment key for one physical unit of an item.
func UnitKey(itemID string, index int) string {
	return fmt.Sprintf("%s%s%d", itemID, unitSeparator, index)
}

// ParseKey splits an assignment key into its item id and, for unit-level
// keys, the unit index.
func ParseKey(key string) (itemID string, index int, isUnit bool) {
	i := strings.LastIndex(key, unitSeparator)
	if i <= 0 {
		return key, 0, false
	}
	n, err := strconv.Atoi(key[i+len(unitSeparator):])
	if err != nil || n < 0 {
		return key, 0, false
	}
	return key[:i], n, true
}

// Clone returns a deep copy.
func (a Assignments) Clone() Assignments {
	if a == nil {
		return Assignments{}
	}
	c := make(Assignments, len(a))
	for k, list := range a {
		c[k] = append([]Assignment(nil), list...)
	}
	return c
}

// Quantity returns the participant's claimed quantity on key.
func (a Assignments) Quantity(key, participantID string) float64 {
	for _, as := range a[key] {
		if as.ParticipantID == participantID {
			return as.Quantity
		}
	}
	return 0
}

// Sharers counts the participants holding a positive quantity on key.
func (a Assignments) Sharers(key string) int {
	n := 0
	for _, as := range a[key] {
		if as.Quantity > 0 {
			n++
		}
	}
	return n
}

// Set upserts the participant's claim on key. A quantity of zero or less
// removes the claim; keys left without claims are deleted.
func (a Assignments) Set(key, participantID string, quantity float64) {
	list := a[key]
	out := make([]Assignment, 0, len(list)+1)
	found := false
	for _, as := range list {
		if as.ParticipantID == participantID {
			found = true
			if quantity > 0 {
				out = append(out, Assignment{ParticipantID: participantID, Quantity: quantity})
			}
			continue
		}
		if as.Quantity > 0 {
			out = append(out, as)
		}
	}
	if !found && quantity > 0 {
		out = append(out, Assignment{ParticipantID: participantID, Quantity: quantity})
	}
	if len(out) == 0 {
		delete(a, key)
		return
	}
	a[key] = out
}

// RemoveItem drops the whole-item key and every unit key of the item.
func (a Assignments) RemoveItem(itemID string) {
	for key := range a {
		if base, _, _ := ParseKey(key); base == itemID {
			delete(a, key)
		}
	}
}

// PruneUnits drops unit claims at or beyond the item's quantity.
func (a Assignments) PruneUnits(item Item) {
	for key := range a {
		itemID, idx, unit := ParseKey(key)
		if unit && itemID == item.ID && idx >= item.Quantity {
			delete(a, key)
		}
	}
}

// Keys returns the assignment keys in sorted order.
func (a Assignments) Keys() []string {
	keys := make([]string, 0, len(a))
	for key := range a {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// RemoveParticipant drops every claim held by the participant.
func (a Assignments) RemoveParticipant(participantID string) {
	for key := range a {
		a.Set(key, participantID, 0)
	}
}

// RenameItem moves the item's keys from oldID to newID.
func (a Assignments) RenameItem(oldID, newID string) {
	moved := Assignments{}
	for key, list := range a {
		base, idx, unit := ParseKey(key)
		if base != oldID {
			continue
		}
		delete(a, key)
		if unit {
			moved[UnitKey(newID, idx)] = list
		} else {
			moved[newID] = list
		}
	}
	for k, v := range moved {
		a[k] = v
	}
}

// RenameParticipant rewrites the participant id on every claim.
func (a Assignments) RenameParticipant(oldID, newID string) {
	for key, list := range a {
		out := make([]Assignment, len(list))
		for i, as := range list {
			if as.ParticipantID == oldID {
				as.ParticipantID = newID
			}
			out[i] = as
		}
		a[key] = out
	}
}
