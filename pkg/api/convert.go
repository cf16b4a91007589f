package api

import "github.com/mmynk/receiptsplit/internal/models"

// FromSession converts a domain session to its wire form.
func FromSession(s *models.Session) Session {
	return Session{
		ID:            s.ID,
		LastUpdated:   s.LastUpdated,
		LastUpdatedBy: s.LastUpdatedBy,
		CreatedAt:     s.CreatedAt,
		MutableState:  FromMutable(s.Mutable()),
	}
}

// ToSession converts a wire session to the domain model.
func ToSession(s Session) *models.Session {
	m := ToMutable(s.MutableState)
	return &models.Session{
		ID:            s.ID,
		Status:        m.Status,
		HostStep:      m.HostStep,
		LastUpdated:   s.LastUpdated,
		LastUpdatedBy: s.LastUpdatedBy,
		Items:         m.Items,
		Participants:  m.Participants,
		Assignments:   m.Assignments,
		Charges:       m.Charges,
		Subtotal:      m.Subtotal,
		Total:         m.Total,
		NumberFormat:  m.NumberFormat,
		CreatedAt:     s.CreatedAt,
	}
}

// FromMutable converts the mutable slice to its wire form.
func FromMutable(m models.MutableState) MutableState {
	out := MutableState{
		Status:       string(m.Status),
		HostStep:     m.HostStep,
		Items:        make([]Item, len(m.Items)),
		Participants: make([]Participant, len(m.Participants)),
		Assignments:  make(map[string][]Assignment, len(m.Assignments)),
		Charges:      make([]Charge, len(m.Charges)),
		Subtotal:     m.Subtotal,
		Total:        m.Total,
		NumberFormat: m.NumberFormat,
	}
	for i, it := range m.Items {
		out.Items[i] = FromItem(it)
	}
	for i, p := range m.Participants {
		out.Participants[i] = FromParticipant(p)
	}
	for key, claims := range m.Assignments {
		list := make([]Assignment, len(claims))
		for i, c := range claims {
			list[i] = Assignment{ParticipantID: c.ParticipantID, Quantity: c.Quantity}
		}
		out.Assignments[key] = list
	}
	for i, c := range m.Charges {
		out.Charges[i] = FromCharge(c)
	}
	return out
}

// ToMutable converts the wire mutable slice to the domain model.
func ToMutable(m MutableState) models.MutableState {
	out := models.MutableState{
		Status:       models.Status(m.Status),
		HostStep:     m.HostStep,
		Items:        make([]models.Item, len(m.Items)),
		Participants: make([]models.Participant, len(m.Participants)),
		Assignments:  make(models.Assignments, len(m.Assignments)),
		Charges:      ToCharges(m.Charges),
		Subtotal:     m.Subtotal,
		Total:        m.Total,
		NumberFormat: m.NumberFormat,
	}
	for i, it := range m.Items {
		out.Items[i] = ToItem(it)
	}
	for i, p := range m.Participants {
		out.Participants[i] = models.Participant{ID: p.ID, Name: p.Name, Role: models.Role(p.Role)}
	}
	for key, claims := range m.Assignments {
		list := make([]models.Assignment, len(claims))
		for i, c := range claims {
			list[i] = models.Assignment{ParticipantID: c.ParticipantID, Quantity: c.Quantity}
		}
		out.Assignments[key] = list
	}
	return out
}

// FromItem converts an item to its wire form.
func FromItem(it models.Item) Item {
	return Item{ID: it.ID, Name: it.Name, Price: it.Price, Quantity: it.Quantity, Mode: string(it.Mode)}
}

// ToItem converts a wire item to the domain model.
func ToItem(it Item) models.Item {
	return models.Item{ID: it.ID, Name: it.Name, Price: it.Price, Quantity: it.Quantity, Mode: models.ItemMode(it.Mode)}
}

// FromParticipant converts a participant to its wire form.
func FromParticipant(p models.Participant) Participant {
	return Participant{ID: p.ID, Name: p.Name, Role: string(p.Role)}
}

// FromCharge converts a charge to its wire form.
func FromCharge(c models.Charge) Charge {
	return Charge{
		ID:           c.ID,
		Name:         c.Name,
		Value:        c.Value,
		ValueType:    string(c.ValueType),
		IsDiscount:   c.IsDiscount,
		Distribution: string(c.Distribution),
	}
}

// FromCharges converts a charge list to its wire form.
func FromCharges(cs []models.Charge) []Charge {
	out := make([]Charge, len(cs))
	for i, c := range cs {
		out[i] = FromCharge(c)
	}
	return out
}

// ToCharges converts a wire charge list to the domain model.
func ToCharges(cs []Charge) []models.Charge {
	out := make([]models.Charge, len(cs))
	for i, c := range cs {
		out[i] = models.Charge{
			ID:           c.ID,
			Name:         c.Name,
			Value:        c.Value,
			ValueType:    models.ValueType(c.ValueType),
			IsDiscount:   c.IsDiscount,
			Distribution: models.Distribution(c.Distribution),
		}
	}
	return out
}
