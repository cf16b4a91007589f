package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/receiptsplit/internal/client"
	"github.com/mmynk/receiptsplit/internal/models"
)

const tempIDPrefix = "tmp-"

func tempID() string {
	return tempIDPrefix + uuid.New().String()
}

// IsTemporaryID reports whether id was minted locally and is awaiting the
// server-assigned id.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// call is a server write issued with the credentials captured when the
// optimistic update was applied.
type call func(ctx context.Context, auth client.Auth, sessionID string) client.Result

// bestEffort is a server write whose failure is never reported to the caller.
// The local copy keeps the optimistic state and the next applied poll is the
// only correction.
type bestEffort call

// mutation describes an optimistic change.
type mutation struct {
	action string
	// ownerOnly writes are refused locally when the device holds no owner token.
	ownerOnly bool
	// apply edits a private clone of the session. Returning an error rejects
	// the mutation before any network call.
	apply func(*models.Session) error
}

// begin validates and applies m under the lock and returns what the network
// half needs.
func (s *Synchronizer) begin(m mutation) (prev *models.Session, gen uint64, sessionID string, auth client.Auth, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil || s.closed {
		return nil, 0, "", client.Auth{}, ErrNoSession
	}
	if m.ownerOnly && s.ownerToken == "" {
		return nil, 0, "", client.Auth{}, ErrNotOwner
	}
	next := s.session.Clone()
	if next.Assignments == nil {
		next.Assignments = models.Assignments{}
	}
	if err := m.apply(next); err != nil {
		return nil, 0, "", client.Auth{}, err
	}
	prev = s.session
	s.session = next
	s.lastInteraction = s.now()
	return prev, s.generation, s.sessionID, s.authLocked(), nil
}

func rejected(err error) client.Result {
	if errors.Is(err, ErrNotOwner) {
		return client.Result{Outcome: client.Unauthorized, Err: err}
	}
	return client.Rejected(err)
}

// acknowledged applies m, awaits the server, and restores the pre-mutation
// snapshot if the server refuses. reconcile, if set, runs on success against
// the then-current session.
func (s *Synchronizer) acknowledged(ctx context.Context, m mutation, send call, reconcile func(*models.Session, client.Result)) client.Result {
	prev, gen, sessionID, auth, err := s.begin(m)
	if err != nil {
		res := rejected(err)
		s.metrics.Mutations.WithLabelValues(m.action, res.Outcome.String()).Inc()
		return res
	}
	s.notify()

	res := send(ctx, auth, sessionID)
	s.metrics.Mutations.WithLabelValues(m.action, res.Outcome.String()).Inc()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return res
	}
	switch {
	case !res.OK():
		// A poll applied while the request was in flight may have moved the
		// cursor past prev; rewind it so the next poll fetches the slice again.
		s.session = prev
		s.cursor = prev.LastUpdated
		s.metrics.Rollbacks.WithLabelValues(m.action).Inc()
		s.log.Warn("mutation rejected, rolled back",
			"action", m.action,
			"session_id", sessionID,
			"outcome", res.Outcome.String(),
			"error", res.Err,
		)
	case reconcile != nil:
		next := s.session.Clone()
		reconcile(next, res)
		s.session = next
	}
	s.mu.Unlock()
	s.notify()
	return res
}

// dispatch applies m and sends the write as a detached best-effort task.
// The returned error is only ever a local rejection.
func (s *Synchronizer) dispatch(ctx context.Context, m mutation, send bestEffort) error {
	_, _, sessionID, auth, err := s.begin(m)
	if err != nil {
		s.metrics.Mutations.WithLabelValues(m.action, rejected(err).Outcome.String()).Inc()
		return err
	}
	s.notify()

	ctx = context.WithoutCancel(ctx)
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		res := send(ctx, auth, sessionID)
		s.metrics.Mutations.WithLabelValues(m.action, res.Outcome.String()).Inc()
		if !res.OK() {
			s.metrics.BestEffortFailures.WithLabelValues(m.action).Inc()
			s.log.Warn("best-effort mutation failed",
				"action", m.action,
				"session_id", sessionID,
				"outcome", res.Outcome.String(),
				"error", res.Err,
			)
		}
	}()
	return nil
}

// AddItem appends item under a temporary id and swaps in the server id once
// the server acknowledges. The Result carries the server id.
func (s *Synchronizer) AddItem(ctx context.Context, item models.Item) client.Result {
	item.Name = strings.TrimSpace(item.Name)
	if item.Mode == "" {
		item.Mode = models.ModeIndividual
	}
	if err := models.ValidateItem(item); err != nil {
		return client.Rejected(err)
	}
	temp := tempID()
	item.ID = temp

	return s.acknowledged(ctx,
		mutation{
			action:    "add_item",
			ownerOnly: true,
			apply: func(sess *models.Session) error {
				sess.Items = append(sess.Items, item)
				return nil
			},
		},
		func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
			wire := item
			wire.ID = ""
			return s.backend.AddItem(ctx, auth, sessionID, wire)
		},
		func(sess *models.Session, res client.Result) {
			if res.ID != "" {
				sess.ReplaceItemID(temp, res.ID)
			}
		},
	)
}

// UpdateItem patches an item. A mode-only patch does not need the owner
// token; use SetItemMode for the best-effort form.
func (s *Synchronizer) UpdateItem(ctx context.Context, itemID string, patch models.ItemPatch) client.Result {
	if patch.Empty() {
		return client.Rejected(ErrEmptyPatch)
	}
	if err := patch.Validate(); err != nil {
		return client.Rejected(err)
	}
	return s.acknowledged(ctx,
		mutation{
			action:    "update_item",
			ownerOnly: !patch.ModeOnly(),
			apply: func(sess *models.Session) error {
				return patchItem(sess, itemID, patch)
			},
		},
		func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
			return s.backend.UpdateItem(ctx, auth, sessionID, itemID, patch)
		},
		nil,
	)
}

func patchItem(sess *models.Session, itemID string, patch models.ItemPatch) error {
	for i := range sess.Items {
		if sess.Items[i].ID == itemID {
			patch.Apply(&sess.Items[i])
			sess.Assignments.PruneUnits(sess.Items[i])
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
}

// DeleteItem removes an item and every claim on it.
func (s *Synchronizer) DeleteItem(ctx context.Context, itemID string) client.Result {
	return s.acknowledged(ctx,
		mutation{
			action:    "delete_item",
			ownerOnly: true,
			apply: func(sess *models.Session) error {
				if !sess.RemoveItem(itemID) {
					return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
				}
				return nil
			},
		},
		func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
			return s.backend.DeleteItem(ctx, auth, sessionID, itemID)
		},
		nil,
	)
}

// UpdateCharges replaces the charge list. Charges without an id get one.
func (s *Synchronizer) UpdateCharges(ctx context.Context, charges []models.Charge) client.Result {
	list := make([]models.Charge, len(charges))
	for i, c := range charges {
		c.Name = strings.TrimSpace(c.Name)
		if c.Distribution == "" {
			c.Distribution = models.DistributeProportional
		}
		if err := models.ValidateCharge(c); err != nil {
			return client.Rejected(err)
		}
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		list[i] = c
	}
	return s.acknowledged(ctx,
		mutation{
			action:    "update_charges",
			ownerOnly: true,
			apply: func(sess *models.Session) error {
				sess.Charges = append([]models.Charge(nil), list...)
				return nil
			},
		},
		func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
			return s.backend.UpdateCharges(ctx, auth, sessionID, list)
		},
		nil,
	)
}

// UpdateTotals sets the printed subtotal and total used for verification.
func (s *Synchronizer) UpdateTotals(ctx context.Context, subtotal, total float64) client.Result {
	if subtotal < 0 || total < 0 {
		return client.Rejected(models.ErrInvalidPrice)
	}
	return s.acknowledged(ctx,
		mutation{
			action:    "update_totals",
			ownerOnly: true,
			apply: func(sess *models.Session) error {
				sess.Subtotal = subtotal
				sess.Total = total
				return nil
			},
		},
		func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
			return s.backend.UpdateTotals(ctx, auth, sessionID, subtotal, total)
		},
		nil,
	)
}

// Finalize locks claims for everyone but the owner.
func (s *Synchronizer) Finalize(ctx context.Context) client.Result {
	return s.setStatus(ctx, "finalize", models.StatusFinalized, s.backend.Finalize)
}

// Reopen returns a finalized session to assigning.
func (s *Synchronizer) Reopen(ctx context.Context) client.Result {
	return s.setStatus(ctx, "reopen", models.StatusAssigning, s.backend.Reopen)
}

func (s *Synchronizer) setStatus(ctx context.Context, action string, status models.Status, send call) client.Result {
	return s.acknowledged(ctx,
		mutation{
			action:    action,
			ownerOnly: true,
			apply: func(sess *models.Session) error {
				sess.Status = status
				return nil
			},
		},
		send,
		nil,
	)
}

// AddParticipant adds a participant under a temporary id and swaps in the
// server id once acknowledged.
func (s *Synchronizer) AddParticipant(ctx context.Context, name string) client.Result {
	name = strings.TrimSpace(name)
	if err := models.ValidateName(name); err != nil {
		return client.Rejected(err)
	}
	temp := tempID()

	return s.acknowledged(ctx,
		mutation{
			action:    "add_participant",
			ownerOnly: true,
			apply: func(sess *models.Session) error {
				sess.Participants = append(sess.Participants, models.Participant{ID: temp, Name: name, Role: models.RoleEditor})
				return nil
			},
		},
		func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
			return s.backend.AddParticipant(ctx, auth, sessionID, name)
		},
		func(sess *models.Session, res client.Result) {
			if res.ID != "" {
				sess.ReplaceParticipantID(temp, res.ID)
			}
		},
	)
}

// RemoveParticipant removes a participant and every claim they hold.
func (s *Synchronizer) RemoveParticipant(ctx context.Context, participantID string) client.Result {
	return s.acknowledged(ctx,
		mutation{
			action:    "remove_participant",
			ownerOnly: true,
			apply: func(sess *models.Session) error {
				p, ok := sess.FindParticipant(participantID)
				if !ok {
					return fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
				}
				if p.Role == models.RoleOwner {
					return ErrRemoveOwner
				}
				sess.RemoveParticipant(participantID)
				return nil
			},
		},
		func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
			return s.backend.RemoveParticipant(ctx, auth, sessionID, participantID)
		},
		nil,
	)
}

// Assign sets participantID's claimed quantity on key, an item id or a unit
// key. A quantity of zero clears the claim.
func (s *Synchronizer) Assign(ctx context.Context, key, participantID string, quantity float64) error {
	if quantity < 0 {
		return ErrNegativeQuantity
	}
	var updatedBy string
	m := mutation{
		action: "assign",
		apply: func(sess *models.Session) error {
			if sess.Status == models.StatusFinalized && s.ownerToken == "" {
				return ErrFinalized
			}
			itemID, _, _ := models.ParseKey(key)
			if _, ok := sess.FindItem(itemID); !ok {
				return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
			}
			if _, ok := sess.FindParticipant(participantID); !ok {
				return fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
			}
			if s.current != nil {
				updatedBy = s.current.Name
			}
			sess.Assignments.Set(key, participantID, quantity)
			return nil
		},
	}
	return s.dispatch(ctx, m, func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
		return s.backend.Assign(ctx, auth, sessionID, client.AssignInput{
			Key:           key,
			ParticipantID: participantID,
			Quantity:      quantity,
			Assigned:      quantity > 0,
			UpdatedBy:     updatedBy,
		})
	})
}

// Unassign clears participantID's claim on key.
func (s *Synchronizer) Unassign(ctx context.Context, key, participantID string) error {
	return s.Assign(ctx, key, participantID, 0)
}

// RenameParticipant renames a participant. The owner may rename anyone; other
// devices only the participant they act as.
func (s *Synchronizer) RenameParticipant(ctx context.Context, participantID, name string) error {
	name = strings.TrimSpace(name)
	if err := models.ValidateName(name); err != nil {
		return err
	}
	m := mutation{
		action: "rename_participant",
		apply: func(sess *models.Session) error {
			if s.ownerToken == "" && (s.current == nil || s.current.ID != participantID) {
				return ErrNotOwner
			}
			for i := range sess.Participants {
				if sess.Participants[i].ID == participantID {
					sess.Participants[i].Name = name
					if s.current != nil && s.current.ID == participantID {
						renamed := sess.Participants[i]
						s.current = &renamed
					}
					return nil
				}
			}
			return fmt.Errorf("%w: %s", ErrUnknownParticipant, participantID)
		},
	}
	return s.dispatch(ctx, m, func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
		return s.backend.RenameParticipant(ctx, auth, sessionID, participantID, name)
	})
}

// UpdateHostStep records the owner's current screen.
func (s *Synchronizer) UpdateHostStep(ctx context.Context, step int) error {
	if err := models.ValidateHostStep(step); err != nil {
		return err
	}
	m := mutation{
		action:    "update_host_step",
		ownerOnly: true,
		apply: func(sess *models.Session) error {
			sess.HostStep = step
			return nil
		},
	}
	return s.dispatch(ctx, m, func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
		return s.backend.UpdateHostStep(ctx, auth, sessionID, step)
	})
}

// SetItemMode switches an item between individual and grouped. Any
// participant may do this.
func (s *Synchronizer) SetItemMode(ctx context.Context, itemID string, mode models.ItemMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown item mode %q", mode)
	}
	patch := models.ItemPatch{Mode: &mode}
	m := mutation{
		action: "set_item_mode",
		apply: func(sess *models.Session) error {
			return patchItem(sess, itemID, patch)
		},
	}
	return s.dispatch(ctx, m, func(ctx context.Context, auth client.Auth, sessionID string) client.Result {
		return s.backend.UpdateItem(ctx, auth, sessionID, itemID, patch)
	})
}
