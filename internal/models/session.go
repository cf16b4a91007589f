package models

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusAssigning means participants may still claim items.
	StatusAssigning Status = "assigning"
	// StatusFinalized means assignments are frozen for everyone but the owner.
	StatusFinalized Status = "finalized"
)

// Role distinguishes the session owner from everyone who joined later.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
)

// Host steps bound the screen the owner is currently on.
const (
	MinHostStep = 1
	MaxHostStep = 3
)

// Session is the root aggregate shared by one host and several guests.
//
// The server owns the authoritative copy. Clients hold a provisional copy that
// is replaced wholesale on every change: a *Session that has been published
// must never be mutated in place, use Clone first.
type Session struct {
	// ID is the opaque session identifier (UUID format).
	ID string

	// Status is assigning or finalized.
	Status Status

	// HostStep is the screen (1-3) the owner is on. Guests use it to pace
	// their own UI.
	HostStep int

	// LastUpdated is the server-issued change cursor. It is compared for
	// equality only and never parsed.
	LastUpdated string

	// LastUpdatedBy is the display name attached to the latest write.
	LastUpdatedBy string

	Items        []Item
	Participants []Participant
	Assignments  Assignments
	Charges      []Charge

	// Subtotal and Total are the values printed on the receipt. They are
	// reference values for verification, never computed.
	Subtotal float64
	Total    float64

	// NumberFormat is an opaque rendering hint carried for the UI layer.
	NumberFormat string

	// CreatedAt is the Unix timestamp when the session was created.
	CreatedAt int64
}

// Item is a receipt line.
type Item struct {
	ID   string
	Name string

	// Price is the unit price.
	Price float64

	// Quantity is the number of physical units on the line (>= 1).
	Quantity int

	// Mode controls how claimants of this line share it.
	Mode ItemMode
}

// ItemMode says whether claimants split one shared value or pay per unit.
type ItemMode string

const (
	ModeIndividual ItemMode = "individual"
	ModeGrouped    ItemMode = "grouped"
)

// Participant is one person in the session.
type Participant struct {
	ID   string
	Name string
	Role Role
}

// MutableState is the slice of a session that polling replaces wholesale.
type MutableState struct {
	Status       Status
	HostStep     int
	Items        []Item
	Participants []Participant
	Assignments  Assignments
	Charges      []Charge
	Subtotal     float64
	Total        float64
	NumberFormat string
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Items = append([]Item(nil), s.Items...)
	c.Participants = append([]Participant(nil), s.Participants...)
	c.Charges = append([]Charge(nil), s.Charges...)
	c.Assignments = s.Assignments.Clone()
	return &c
}

// Mutable extracts the mutable slice of the session.
func (s *Session) Mutable() MutableState {
	c := s.Clone()
	return MutableState{
		Status:       c.Status,
		HostStep:     c.HostStep,
		Items:        c.Items,
		Participants: c.Participants,
		Assignments:  c.Assignments,
		Charges:      c.Charges,
		Subtotal:     c.Subtotal,
		Total:        c.Total,
		NumberFormat: c.NumberFormat,
	}
}

// WithMutable returns a copy of the session whose mutable slice is replaced
// by m. Identity fields (ID, CreatedAt) are kept.
func (s *Session) WithMutable(m MutableState, cursor string) *Session {
	c := s.Clone()
	c.Status = m.Status
	c.HostStep = m.HostStep
	c.Items = append([]Item(nil), m.Items...)
	c.Participants = append([]Participant(nil), m.Participants...)
	c.Assignments = m.Assignments.Clone()
	c.Charges = append([]Charge(nil), m.Charges...)
	c.Subtotal = m.Subtotal
	c.Total = m.Total
	c.NumberFormat = m.NumberFormat
	c.LastUpdated = cursor
	return c
}

// FindItem returns the item with the given id.
func (s *Session) FindItem(id string) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// FindParticipant returns the participant with the given id.
func (s *Session) FindParticipant(id string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Owner returns the owner participant.
func (s *Session) Owner() (Participant, bool) {
	for _, p := range s.Participants {
		if p.Role == RoleOwner {
			return p, true
		}
	}
	return Participant{}, false
}

// RemoveItem drops the item and every assignment key that references it.
func (s *Session) RemoveItem(id string) bool {
	for i, it := range s.Items {
		if it.ID == id {
			s.Items = append(s.Items[:i:i], s.Items[i+1:]...)
			s.Assignments.RemoveItem(id)
			return true
		}
	}
	return false
}

// RemoveParticipant drops the participant and all of their claims.
func (s *Session) RemoveParticipant(id string) bool {
	for i, p := range s.Participants {
		if p.ID == id {
			s.Participants = append(s.Participants[:i:i], s.Participants[i+1:]...)
			s.Assignments.RemoveParticipant(id)
			return true
		}
	}
	return false
}

// ReplaceItemID renames an item, rewriting its assignment keys.
// Used when a server-assigned id replaces a temporary one.
func (s *Session) ReplaceItemID(oldID, newID string) {
	for i := range s.Items {
		if s.Items[i].ID == oldID {
			s.Items[i].ID = newID
		}
	}
	s.Assignments.RenameItem(oldID, newID)
}

// ReplaceParticipantID renames a participant, rewriting their claims.
func (s *Session) ReplaceParticipantID(oldID, newID string) {
	for i := range s.Participants {
		if s.Participants[i].ID == oldID {
			s.Participants[i].ID = newID
		}
	}
	s.Assignments.RenameParticipant(oldID, newID)
}
