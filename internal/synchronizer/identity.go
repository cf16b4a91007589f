package synchronizer

import (
	"context"

	"github.com/mmynk/receiptsplit/internal/client"
	"github.com/mmynk/receiptsplit/internal/identity"
	"github.com/mmynk/receiptsplit/internal/models"
)

// Join adds this device to the session as a new participant named name. A
// LimitReached result means the session is full.
func (s *Synchronizer) Join(ctx context.Context, name string) client.Result {
	if err := models.ValidateName(name); err != nil {
		return client.Rejected(err)
	}
	return s.bind(ctx, "join", func(ctx context.Context, auth client.Auth, sessionID string) client.Joined {
		return s.backend.Join(ctx, auth, sessionID, name)
	})
}

// SelectParticipant makes this device act as an existing participant.
func (s *Synchronizer) SelectParticipant(ctx context.Context, participantID string) client.Result {
	s.mu.Lock()
	known := s.session != nil && hasParticipant(s.session, participantID)
	s.mu.Unlock()
	if !known {
		return client.Rejected(ErrUnknownParticipant)
	}
	return s.bind(ctx, "select_participant", func(ctx context.Context, auth client.Auth, sessionID string) client.Joined {
		return s.backend.SelectParticipant(ctx, auth, sessionID, participantID)
	})
}

func (s *Synchronizer) bind(ctx context.Context, action string, send func(context.Context, client.Auth, string) client.Joined) client.Result {
	s.mu.Lock()
	if s.session == nil || s.closed {
		s.mu.Unlock()
		return client.Rejected(ErrNoSession)
	}
	gen := s.generation
	sessionID := s.sessionID
	auth := s.authLocked()
	s.mu.Unlock()

	res := send(ctx, auth, sessionID)
	s.metrics.Mutations.WithLabelValues(action, res.Outcome.String()).Inc()
	if !res.OK() {
		s.log.Info("identity binding refused", "action", action, "session_id", sessionID, "outcome", res.Outcome.String())
		return res.Result
	}

	p := res.Participant
	if err := s.keeper.SavePointer(ctx, sessionID, identity.Pointer{ParticipantID: p.ID, Name: p.Name}); err != nil {
		s.log.Warn("failed to save participant pointer", "session_id", sessionID, "error", err)
	}

	s.mu.Lock()
	if gen == s.generation {
		if !hasParticipant(s.session, p.ID) {
			next := s.session.Clone()
			next.Participants = append(next.Participants, p)
			s.session = next
		}
		s.current = &p
		s.lastInteraction = s.now()
	}
	s.mu.Unlock()
	s.notify()
	return res.Result
}

// ForgetIdentity clears the participant this device acts as. A device holding
// the owner token falls back to the owner.
func (s *Synchronizer) ForgetIdentity(ctx context.Context) error {
	s.mu.Lock()
	sessionID := s.sessionID
	if s.session != nil {
		s.current = identity.Resolve(nil, s.ownerToken != "", s.session.Participants).Current
	} else {
		s.current = nil
	}
	s.mu.Unlock()
	s.notify()

	if sessionID == "" {
		return nil
	}
	return s.keeper.ClearPointer(ctx, sessionID)
}
