package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/receiptsplit/internal/auth"
	"github.com/mmynk/receiptsplit/internal/metrics"
	"github.com/mmynk/receiptsplit/internal/middleware"
	"github.com/mmynk/receiptsplit/internal/models"
	"github.com/mmynk/receiptsplit/internal/storage"
	"github.com/mmynk/receiptsplit/pkg/api"
	"github.com/mmynk/receiptsplit/pkg/api/apiconnect"
)

// ErrLimitReached wraps every quota rejection.
var ErrLimitReached = errors.New("limit reached")

// Ensure SessionService implements the handler interface
var _ apiconnect.SessionServiceHandler = (*SessionService)(nil)

// Limits are the per-device and per-session quotas. Zero disables a quota.
type Limits struct {
	MaxParticipants       int
	FreeSessionsPerDevice int
}

// SessionService implements the Connect SessionService
type SessionService struct {
	store      storage.Store
	jwtManager *auth.JWTManager
	limits     Limits
	metrics    *metrics.Server
}

// NewSessionService creates a new SessionService. m may be nil.
func NewSessionService(store storage.Store, jwtManager *auth.JWTManager, limits Limits, m *metrics.Server) *SessionService {
	return &SessionService{store: store, jwtManager: jwtManager, limits: limits, metrics: m}
}

func (s *SessionService) limitReached(quota, format string, args ...any) error {
	if s.metrics != nil {
		s.metrics.LimitReached.WithLabelValues(quota).Inc()
	}
	slog.Info("Quota reached", "quota", quota)
	return connect.NewError(connect.CodeResourceExhausted, fmt.Errorf("%w: %s", ErrLimitReached, fmt.Sprintf(format, args...)))
}

// storeError converts a storage failure into a connect error.
func storeError(op string, err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
		return connectErr
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		slog.Error(op+" failed", "error", err)
		return connect.NewError(connect.CodeInternal, err)
	}
}

func invalid(err error) error {
	return connect.NewError(connect.CodeInvalidArgument, err)
}

func notFound(format string, args ...any) error {
	return connect.NewError(connect.CodeNotFound, fmt.Errorf(format, args...))
}

// requireOwner checks the caller presented the owner token of sessionID.
func requireOwner(ctx context.Context, sessionID string) error {
	err := auth.Authorize(middleware.GetClaims(ctx), sessionID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrMissingToken):
		return connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("owner token required"))
	default:
		return connect.NewError(connect.CodePermissionDenied, err)
	}
}

func isOwner(ctx context.Context, sessionID string) bool {
	return auth.Authorize(middleware.GetClaims(ctx), sessionID) == nil
}

func requireDevice(ctx context.Context) (string, error) {
	deviceID := middleware.GetDeviceID(ctx)
	if deviceID == "" {
		return "", invalid(fmt.Errorf("%s header required", api.HeaderDeviceID))
	}
	return deviceID, nil
}

func ack(session *models.Session, id string) *connect.Response[api.Ack] {
	return connect.NewResponse(&api.Ack{SchemaVersion: api.SchemaVersion, ID: id, LastUpdated: session.LastUpdated})
}

// mutate applies fn to the stored session and acknowledges the new cursor.
func (s *SessionService) mutate(ctx context.Context, op, sessionID, updatedBy string, fn storage.MutateFunc) (*models.Session, error) {
	if sessionID == "" {
		return nil, invalid(fmt.Errorf("session id required"))
	}
	session, err := s.store.UpdateSession(ctx, sessionID, func(sess *models.Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		if updatedBy != "" {
			sess.LastUpdatedBy = updatedBy
		}
		return nil
	})
	if err != nil {
		return nil, storeError(op, err)
	}
	slog.Debug("Session updated", "op", op, "session_id", sessionID, "last_updated", session.LastUpdated)
	return session, nil
}

// CreateSession creates a session whose owner is the calling device.
func (s *SessionService) CreateSession(ctx context.Context, req *connect.Request[api.CreateSessionRequest]) (*connect.Response[api.CreateSessionResponse], error) {
	deviceID, err := requireDevice(ctx)
	if err != nil {
		return nil, err
	}

	ownerName := strings.TrimSpace(req.Msg.OwnerName)
	if err := models.ValidateName(ownerName); err != nil {
		return nil, invalid(fmt.Errorf("owner: %w", err))
	}

	if limit := s.limits.FreeSessionsPerDevice; limit > 0 {
		n, err := s.store.CountSessionsCreatedBy(ctx, deviceID)
		if err != nil {
			return nil, storeError("CountSessionsCreatedBy", err)
		}
		if n >= limit {
			return nil, s.limitReached("sessions_per_device", "device has created %d sessions", n)
		}
	}

	owner := models.Participant{ID: uuid.New().String(), Name: ownerName, Role: models.RoleOwner}
	session := &models.Session{
		Participants:  []models.Participant{owner},
		Charges:       api.ToCharges(req.Msg.Charges),
		Subtotal:      req.Msg.Subtotal,
		Total:         req.Msg.Total,
		NumberFormat:  req.Msg.NumberFormat,
		LastUpdatedBy: ownerName,
	}
	for _, it := range req.Msg.Items {
		item := api.ToItem(it)
		item.ID = ""
		item.Name = strings.TrimSpace(item.Name)
		if err := models.ValidateItem(item); err != nil {
			return nil, invalid(fmt.Errorf("item %q: %w", it.Name, err))
		}
		session.Items = append(session.Items, item)
	}
	for i := range session.Charges {
		if session.Charges[i].Distribution == "" {
			session.Charges[i].Distribution = models.DistributeProportional
		}
		if err := models.ValidateCharge(session.Charges[i]); err != nil {
			return nil, invalid(err)
		}
	}

	if err := s.store.CreateSession(ctx, session, deviceID); err != nil {
		return nil, storeError("CreateSession", err)
	}
	if err := s.store.BindDevice(ctx, session.ID, owner.ID, deviceID); err != nil {
		return nil, storeError("BindDevice", err)
	}

	token, err := s.jwtManager.Generate(session.ID, owner)
	if err != nil {
		slog.Error("CreateSession token generation failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("Session created", "session_id", session.ID, "items", len(session.Items), "device_id", deviceID)
	return connect.NewResponse(&api.CreateSessionResponse{
		SchemaVersion: api.SchemaVersion,
		Session:       api.FromSession(session),
		OwnerToken:    token,
		OwnerID:       owner.ID,
	}), nil
}

// GetSession returns a full snapshot.
func (s *SessionService) GetSession(ctx context.Context, req *connect.Request[api.GetSessionRequest]) (*connect.Response[api.GetSessionResponse], error) {
	session, err := s.store.GetSession(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, storeError("GetSession", err)
	}
	return connect.NewResponse(&api.GetSessionResponse{
		SchemaVersion: api.SchemaVersion,
		Session:       api.FromSession(session),
	}), nil
}

// GetChanges returns the mutable slice when the session moved past Since.
func (s *SessionService) GetChanges(ctx context.Context, req *connect.Request[api.GetChangesRequest]) (*connect.Response[api.GetChangesResponse], error) {
	session, err := s.store.GetSession(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, storeError("GetChanges", err)
	}

	resp := &api.GetChangesResponse{SchemaVersion: api.SchemaVersion, LastUpdated: session.LastUpdated}
	if req.Msg.Since != session.LastUpdated {
		state := api.FromMutable(session.Mutable())
		resp.HasChanges = true
		resp.State = &state
	}
	return connect.NewResponse(resp), nil
}

// Assign sets one participant's claim on an item or unit.
func (s *SessionService) Assign(ctx context.Context, req *connect.Request[api.AssignRequest]) (*connect.Response[api.Ack], error) {
	msg := req.Msg
	if msg.Key == "" || msg.ParticipantID == "" {
		return nil, invalid(fmt.Errorf("key and participant id required"))
	}
	if msg.Quantity < 0 {
		return nil, invalid(fmt.Errorf("quantity cannot be negative"))
	}
	owner := isOwner(ctx, msg.SessionID)

	session, err := s.mutate(ctx, "Assign", msg.SessionID, msg.UpdatedBy, func(sess *models.Session) error {
		if sess.Status == models.StatusFinalized && !owner {
			return connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("session is finalized"))
		}
		itemID, idx, unit := models.ParseKey(msg.Key)
		item, ok := sess.FindItem(itemID)
		if !ok {
			return notFound("item %s not found", itemID)
		}
		if unit && idx >= item.Quantity {
			return invalid(fmt.Errorf("unit %d out of range for item %s", idx, itemID))
		}
		if _, ok := sess.FindParticipant(msg.ParticipantID); !ok {
			return notFound("participant %s not found", msg.ParticipantID)
		}
		quantity := msg.Quantity
		if !msg.Assigned {
			quantity = 0
		}
		sess.Assignments.Set(msg.Key, msg.ParticipantID, quantity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ack(session, ""), nil
}

// AddItem appends an item.
func (s *SessionService) AddItem(ctx context.Context, req *connect.Request[api.AddItemRequest]) (*connect.Response[api.Ack], error) {
	if err := requireOwner(ctx, req.Msg.SessionID); err != nil {
		return nil, err
	}
	item := api.ToItem(req.Msg.Item)
	item.ID = uuid.New().String()
	item.Name = strings.TrimSpace(item.Name)
	if item.Mode == "" {
		item.Mode = models.ModeIndividual
	}
	if err := models.ValidateItem(item); err != nil {
		return nil, invalid(err)
	}

	session, err := s.mutate(ctx, "AddItem", req.Msg.SessionID, "", func(sess *models.Session) error {
		sess.Items = append(sess.Items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ack(session, item.ID), nil
}

// UpdateItem patches an item. Mode-only patches are open to every participant.
func (s *SessionService) UpdateItem(ctx context.Context, req *connect.Request[api.UpdateItemRequest]) (*connect.Response[api.Ack], error) {
	msg := req.Msg
	patch := models.ItemPatch{Name: msg.Name, Price: msg.Price, Quantity: msg.Quantity}
	if msg.Mode != nil {
		mode := models.ItemMode(*msg.Mode)
		patch.Mode = &mode
	}
	if patch.Empty() {
		return nil, invalid(fmt.Errorf("nothing to update"))
	}
	if !patch.ModeOnly() {
		if err := requireOwner(ctx, msg.SessionID); err != nil {
			return nil, err
		}
	}
	if err := patch.Validate(); err != nil {
		return nil, invalid(err)
	}

	session, err := s.mutate(ctx, "UpdateItem", msg.SessionID, "", func(sess *models.Session) error {
		for i := range sess.Items {
			if sess.Items[i].ID != msg.ItemID {
				continue
			}
			patch.Apply(&sess.Items[i])
			sess.Assignments.PruneUnits(sess.Items[i])
			return nil
		}
		return notFound("item %s not found", msg.ItemID)
	})
	if err != nil {
		return nil, err
	}
	return ack(session, ""), nil
}

// DeleteItem removes an item and every claim on it.
func (s *SessionService) DeleteItem(ctx context.Context, req *connect.Request[api.DeleteItemRequest]) (*connect.Response[api.Ack], error) {
	if err := requireOwner(ctx, req.Msg.SessionID); err != nil {
		return nil, err
	}
	session, err := s.mutate(ctx, "DeleteItem", req.Msg.SessionID, "", func(sess *models.Session) error {
		if !sess.RemoveItem(req.Msg.ItemID) {
			return notFound("item %s not found", req.Msg.ItemID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ack(session, ""), nil
}

// UpdateCharges replaces the charge list.
func (s *SessionService) UpdateCharges(ctx context.Context, req *connect.Request[api.UpdateChargesRequest]) (*connect.Response[api.Ack], error) {
	if err := requireOwner(ctx, req.Msg.SessionID); err != nil {
		return nil, err
	}
	charges := api.ToCharges(req.Msg.Charges)
	for i := range charges {
		charges[i].Name = strings.TrimSpace(charges[i].Name)
		if charges[i].Distribution == "" {
			charges[i].Distribution = models.DistributeProportional
		}
		if err := models.ValidateCharge(charges[i]); err != nil {
			return nil, invalid(err)
		}
	}

	session, err := s.mutate(ctx, "UpdateCharges", req.Msg.SessionID, "", func(sess *models.Session) error {
		sess.Charges = charges
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ack(session, ""), nil
}

// UpdateTotals sets the printed subtotal and total used for verification.
func (s *SessionService) UpdateTotals(ctx context.Context, req *connect.Request[api.UpdateTotalsRequest]) (*connect.Response[api.Ack], error) {
	if err := requireOwner(ctx, req.Msg.SessionID); err != nil {
		return nil, err
	}
	if req.Msg.Subtotal < 0 || req.Msg.Total < 0 {
		return nil, invalid(models.ErrInvalidPrice)
	}
	session, err := s.mutate(ctx, "UpdateTotals", req.Msg.SessionID, "", func(sess *models.Session) error {
		sess.Subtotal = req.Msg.Subtotal
		sess.Total = req.Msg.Total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ack(session, ""), nil
}

// Finalize locks claims for everyone but the owner.
func (s *SessionService) Finalize(ctx context.Context, req *connect.Request[api.StatusRequest]) (*connect.Response[api.Ack], error) {
	return s.setStatus(ctx, "Finalize", req.Msg.SessionID, models.StatusFinalized)
}

// Reopen returns a finalized session to assigning.
func (s *SessionService) Reopen(ctx context.Context, req *connect.Request[api.StatusRequest]) (*connect.Response[api.Ack], error) {
	return s.setStatus(ctx, "Reopen", req.Msg.SessionID, models.StatusAssigning)
}

func (s *SessionService) setStatus(ctx context.Context, op, sessionID string, status models.Status) (*connect.Response[api.Ack], error) {
	if err := requireOwner(ctx, sessionID); err != nil {
		return nil, err
	}
	session, err := s.mutate(ctx, op, sessionID, "", func(sess *models.Session) error {
		sess.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Session status changed", "session_id", sessionID, "status", status)
	return ack(session, ""), nil
}

// UpdateHostStep records the owner's current screen.
func (s *SessionService) UpdateHostStep(ctx context.Context, req *connect.Request[api.UpdateHostStepRequest]) (*connect.Response[api.Ack], error) {
	if err := requireOwner(ctx, req.Msg.SessionID); err != nil {
		return nil, err
	}
	if err := models.ValidateHostStep(req.Msg.Step); err != nil {
		return nil, invalid(err)
	}
	session, err := s.mutate(ctx, "UpdateHostStep", req.Msg.SessionID, "", func(sess *models.Session) error {
		sess.HostStep = req.Msg.Step
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ack(session, ""), nil
}

// addEditor appends a new editor, enforcing the participant quota.
func (s *SessionService) addEditor(sess *models.Session, p models.Participant) error {
	if limit := s.limits.MaxParticipants; limit > 0 && len(sess.Participants) >= limit {
		return s.limitReached("participants_per_session", "session has %d participants", len(sess.Participants))
	}
	sess.Participants = append(sess.Participants, p)
	return nil
}

// AddParticipant adds a participant on the owner's behalf.
func (s *SessionService) AddParticipant(ctx context.Context, req *connect.Request[api.AddParticipantRequest]) (*connect.Response[api.Ack], error) {
	if err := requireOwner(ctx, req.Msg.SessionID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Msg.Name)
	if err := models.ValidateName(name); err != nil {
		return nil, invalid(err)
	}
	p := models.Participant{ID: uuid.New().String(), Name: name, Role: models.RoleEditor}

	session, err := s.mutate(ctx, "AddParticipant", req.Msg.SessionID, "", func(sess *models.Session) error {
		return s.addEditor(sess, p)
	})
	if err != nil {
		return nil, err
	}
	return ack(session, p.ID), nil
}

// RemoveParticipant removes a participant and every claim they hold.
func (s *SessionService) RemoveParticipant(ctx context.Context, req *connect.Request[api.RemoveParticipantRequest]) (*connect.Response[api.Ack], error) {
	if err := requireOwner(ctx, req.Msg.SessionID); err != nil {
		return nil, err
	}
	session, err := s.mutate(ctx, "RemoveParticipant", req.Msg.SessionID, "", func(sess *models.Session) error {
		p, ok := sess.FindParticipant(req.Msg.ParticipantID)
		if !ok {
			return notFound("participant %s not found", req.Msg.ParticipantID)
		}
		if p.Role == models.RoleOwner {
			return connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("the owner cannot be removed"))
		}
		sess.RemoveParticipant(p.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ack(session, ""), nil
}

// RenameParticipant renames a participant. Allowed for the owner and for the
// device bound to that participant.
func (s *SessionService) RenameParticipant(ctx context.Context, req *connect.Request[api.RenameParticipantRequest]) (*connect.Response[api.Ack], error) {
	msg := req.Msg
	name := strings.TrimSpace(msg.Name)
	if err := models.ValidateName(name); err != nil {
		return nil, invalid(err)
	}
	if !isOwner(ctx, msg.SessionID) {
		deviceID := middleware.GetDeviceID(ctx)
		if deviceID == "" {
			return nil, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("owner token or device id required"))
		}
		bound, err := s.store.DeviceParticipant(ctx, msg.SessionID, deviceID)
		if err != nil {
			return nil, storeError("DeviceParticipant", err)
		}
		if bound != msg.ParticipantID {
			return nil, connect.NewError(connect.CodePermissionDenied, fmt.Errorf("device may only rename its own participant"))
		}
	}

	session, err := s.mutate(ctx, "RenameParticipant", msg.SessionID, name, func(sess *models.Session) error {
		for i := range sess.Participants {
			if sess.Participants[i].ID == msg.ParticipantID {
				sess.Participants[i].Name = name
				return nil
			}
		}
		return notFound("participant %s not found", msg.ParticipantID)
	})
	if err != nil {
		return nil, err
	}
	return ack(session, ""), nil
}

// Join adds the calling device as a new editor.
func (s *SessionService) Join(ctx context.Context, req *connect.Request[api.JoinRequest]) (*connect.Response[api.ParticipantResponse], error) {
	deviceID, err := requireDevice(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Msg.Name)
	if err := models.ValidateName(name); err != nil {
		return nil, invalid(err)
	}
	p := models.Participant{ID: uuid.New().String(), Name: name, Role: models.RoleEditor}

	session, err := s.mutate(ctx, "Join", req.Msg.SessionID, name, func(sess *models.Session) error {
		return s.addEditor(sess, p)
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.BindDevice(ctx, session.ID, p.ID, deviceID); err != nil {
		return nil, storeError("BindDevice", err)
	}

	slog.Info("Participant joined", "session_id", session.ID, "participant_id", p.ID, "device_id", deviceID)
	return connect.NewResponse(&api.ParticipantResponse{
		SchemaVersion: api.SchemaVersion,
		Participant:   api.FromParticipant(p),
		LastUpdated:   session.LastUpdated,
	}), nil
}

// SelectParticipant binds the calling device to an existing participant.
// Only the owner's device may select the owner.
func (s *SessionService) SelectParticipant(ctx context.Context, req *connect.Request[api.SelectParticipantRequest]) (*connect.Response[api.ParticipantResponse], error) {
	deviceID, err := requireDevice(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.store.GetSession(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, storeError("SelectParticipant", err)
	}
	p, ok := session.FindParticipant(req.Msg.ParticipantID)
	if !ok {
		return nil, notFound("participant %s not found", req.Msg.ParticipantID)
	}
	if p.Role == models.RoleOwner {
		if err := requireOwner(ctx, session.ID); err != nil {
			return nil, err
		}
	}
	if err := s.store.BindDevice(ctx, session.ID, p.ID, deviceID); err != nil {
		return nil, storeError("BindDevice", err)
	}

	return connect.NewResponse(&api.ParticipantResponse{
		SchemaVersion: api.SchemaVersion,
		Participant:   api.FromParticipant(p),
		LastUpdated:   session.LastUpdated,
	}), nil
}
