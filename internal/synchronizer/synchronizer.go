// Package synchronizer keeps one device's copy of a session in step with the
// server.
//
// Writes are applied to the local copy before the server answers. Writes the
// server must acknowledge are rolled back on failure; high-frequency writes
// (claims, renames, host step, item mode) are sent as best-effort tasks and
// left to polling when they fail. Polling replaces the whole mutable slice of
// the session, but pauses while the user is editing.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/receiptsplit/internal/calculator"
	"github.com/mmynk/receiptsplit/internal/client"
	"github.com/mmynk/receiptsplit/internal/identity"
	"github.com/mmynk/receiptsplit/internal/metrics"
	"github.com/mmynk/receiptsplit/internal/models"
)

var (
	ErrNoSession          = errors.New("no session loaded")
	ErrNotOwner           = errors.New("owner credential required")
	ErrFinalized          = errors.New("session is finalized")
	ErrUnknownItem        = errors.New("item not found")
	ErrUnknownParticipant = errors.New("participant not found")
	ErrNegativeQuantity   = errors.New("quantity cannot be negative")
	ErrRemoveOwner        = errors.New("the owner cannot be removed")
	ErrEmptyPatch         = errors.New("nothing to update")
)

// Backend is the server surface the synchronizer needs. *client.Client
// implements it.
type Backend interface {
	GetSession(ctx context.Context, auth client.Auth, sessionID string) (*models.Session, error)
	GetChanges(ctx context.Context, auth client.Auth, sessionID, since string) (*client.Changes, error)

	Assign(ctx context.Context, auth client.Auth, sessionID string, in client.AssignInput) client.Result
	AddItem(ctx context.Context, auth client.Auth, sessionID string, item models.Item) client.Result
	UpdateItem(ctx context.Context, auth client.Auth, sessionID, itemID string, patch models.ItemPatch) client.Result
	DeleteItem(ctx context.Context, auth client.Auth, sessionID, itemID string) client.Result
	UpdateCharges(ctx context.Context, auth client.Auth, sessionID string, charges []models.Charge) client.Result
	UpdateTotals(ctx context.Context, auth client.Auth, sessionID string, subtotal, total float64) client.Result
	Finalize(ctx context.Context, auth client.Auth, sessionID string) client.Result
	Reopen(ctx context.Context, auth client.Auth, sessionID string) client.Result
	UpdateHostStep(ctx context.Context, auth client.Auth, sessionID string, step int) client.Result
	AddParticipant(ctx context.Context, auth client.Auth, sessionID, name string) client.Result
	RemoveParticipant(ctx context.Context, auth client.Auth, sessionID, participantID string) client.Result
	RenameParticipant(ctx context.Context, auth client.Auth, sessionID, participantID, name string) client.Result
	Join(ctx context.Context, auth client.Auth, sessionID, name string) client.Joined
	SelectParticipant(ctx context.Context, auth client.Auth, sessionID, participantID string) client.Joined
}

// Config controls polling.
type Config struct {
	// PollInterval is the time between diff requests.
	PollInterval time.Duration
	// PauseWindow suppresses polling for this long after a local edit.
	PauseWindow time.Duration
}

// DefaultConfig returns the default polling cadence.
func DefaultConfig() Config {
	return Config{PollInterval: 5 * time.Second, PauseWindow: 15 * time.Second}
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// WithMetrics sets the collectors.
func WithMetrics(m *metrics.Sync) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

// PollResult is the outcome of one poll tick.
type PollResult int

const (
	// Skipped: the user edited within the pause window.
	Skipped PollResult = iota
	// Unchanged: the server has nothing newer than the cursor.
	Unchanged
	// Applied: the mutable slice was replaced.
	Applied
	// Failed: the diff request failed. The next tick retries.
	Failed
	// Inactive: no session is loaded, or it was replaced while the request was in flight.
	Inactive
)

func (r PollResult) String() string {
	switch r {
	case Skipped:
		return "skipped"
	case Unchanged:
		return "unchanged"
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	default:
		return "inactive"
	}
}

// View is a consistent read of the synchronizer's state.
type View struct {
	Session            *models.Session
	Loading            bool
	Err                error
	IsOwner            bool
	CurrentParticipant *models.Participant
	HostStep           int
}

// Synchronizer owns the local copy of one session.
type Synchronizer struct {
	backend Backend
	keeper  *identity.Keeper
	cfg     Config
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Sync
	updates chan struct{}
	tasks   sync.WaitGroup

	mu              sync.Mutex
	sessionID       string
	session         *models.Session // never mutated in place
	cursor          string
	lastInteraction time.Time
	polling         bool
	stopPolling     context.CancelFunc
	loading         bool
	err             error
	deviceID        string
	ownerToken      string
	current         *models.Participant
	generation      uint64
	closed          bool
}

// New creates a synchronizer. store persists the device identity.
func New(backend Backend, store identity.LocalStore, cfg Config, opts ...Option) *Synchronizer {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PauseWindow < 0 {
		cfg.PauseWindow = def.PauseWindow
	}
	s := &Synchronizer{
		backend: backend,
		keeper:  identity.NewKeeper(store),
		cfg:     cfg,
		now:     time.Now,
		log:     slog.Default(),
		updates: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewSync(prometheus.NewRegistry())
	}
	return s
}

// Updates signals every state change. Signals coalesce: a receiver that falls
// behind sees one pending signal, then reads View.
func (s *Synchronizer) Updates() <-chan struct{} {
	return s.updates
}

func (s *Synchronizer) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Load fetches the session, resolves the device identity and makes the
// session active. Completions of work started for a previous session are
// discarded from here on.
func (s *Synchronizer) Load(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrNoSession
	}
	s.generation++
	gen := s.generation
	s.sessionID = sessionID
	s.session = nil
	s.cursor = ""
	s.current = nil
	s.loading = true
	s.err = nil
	s.mu.Unlock()
	s.notify()

	sess, deviceID, token, current, err := s.load(ctx, sessionID)

	s.mu.Lock()
	defer s.notify()
	defer s.mu.Unlock()
	if gen != s.generation {
		return nil
	}
	s.loading = false
	if err != nil {
		s.err = err
		return err
	}
	s.session = sess
	s.cursor = sess.LastUpdated
	s.deviceID = deviceID
	s.ownerToken = token
	s.current = current
	return nil
}

func (s *Synchronizer) load(ctx context.Context, sessionID string) (*models.Session, string, string, *models.Participant, error) {
	deviceID, err := s.keeper.DeviceID(ctx)
	if err != nil {
		return nil, "", "", nil, err
	}
	token, err := s.keeper.OwnerToken(ctx, sessionID)
	if err != nil {
		return nil, "", "", nil, err
	}

	sess, err := s.backend.GetSession(ctx, client.Auth{OwnerToken: token, DeviceID: deviceID}, sessionID)
	if err != nil {
		return nil, "", "", nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	pointer, err := s.keeper.Pointer(ctx, sessionID)
	if err != nil {
		return nil, "", "", nil, err
	}
	res := identity.Resolve(pointer, token != "", sess.Participants)
	if res.Stale {
		s.log.Info("discarding stale participant pointer", "session_id", sessionID, "participant_id", pointer.ParticipantID)
		if err := s.keeper.ClearPointer(ctx, sessionID); err != nil {
			s.log.Warn("failed to clear participant pointer", "session_id", sessionID, "error", err)
		}
	}
	return sess, deviceID, token, res.Current, nil
}

// AdoptOwnerToken stores the owner credential for the loaded session, as
// returned by CreateSession on this device.
func (s *Synchronizer) AdoptOwnerToken(ctx context.Context, sessionID, token string) error {
	if err := s.keeper.SaveOwnerToken(ctx, sessionID, token); err != nil {
		return err
	}
	s.mu.Lock()
	if s.sessionID == sessionID {
		s.ownerToken = token
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// View returns the current state.
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Session: s.session,
		Loading: s.loading,
		Err:     s.err,
		IsOwner: s.ownerToken != "",
	}
	if s.current != nil {
		p := *s.current
		v.CurrentParticipant = &p
	}
	if s.session != nil {
		v.HostStep = s.session.HostStep
	}
	return v
}

// Cursor returns the last server revision the local copy was reconciled with.
func (s *Synchronizer) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// ParticipantTotal computes a participant's breakdown on the current copy.
func (s *Synchronizer) ParticipantTotal(participantID string) calculator.Breakdown {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return calculator.Breakdown{ParticipantID: participantID}
	}
	return calculator.ComputeParticipantTotal(participantID, sess)
}

// MarkInteraction records a local edit. Polling pauses for the pause window.
func (s *Synchronizer) MarkInteraction() {
	s.mu.Lock()
	s.lastInteraction = s.now()
	s.mu.Unlock()
}

// PollOnce runs one poll tick.
func (s *Synchronizer) PollOnce(ctx context.Context) (PollResult, error) {
	res, err := s.poll(ctx)
	s.metrics.Polls.WithLabelValues(res.String()).Inc()
	return res, err
}

func (s *Synchronizer) poll(ctx context.Context) (PollResult, error) {
	s.mu.Lock()
	if s.session == nil || s.closed {
		s.mu.Unlock()
		return Inactive, nil
	}
	if !s.lastInteraction.IsZero() && s.now().Sub(s.lastInteraction) < s.cfg.PauseWindow {
		s.mu.Unlock()
		return Skipped, nil
	}
	gen := s.generation
	sessionID := s.sessionID
	cursor := s.cursor
	auth := s.authLocked()
	s.mu.Unlock()

	changes, err := s.backend.GetChanges(ctx, auth, sessionID, cursor)
	if err != nil {
		s.log.Debug("poll failed", "session_id", sessionID, "error", err)
		return Failed, err
	}
	if !changes.HasChanges {
		return Unchanged, nil
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return Inactive, nil
	}
	s.session = s.session.WithMutable(changes.State, changes.LastUpdated)
	s.cursor = changes.LastUpdated
	stale := s.current != nil && !hasParticipant(s.session, s.current.ID)
	if stale {
		s.current = identity.Resolve(nil, s.ownerToken != "", s.session.Participants).Current
	}
	s.mu.Unlock()
	s.notify()

	if stale {
		if err := s.keeper.ClearPointer(ctx, sessionID); err != nil {
			s.log.Warn("failed to clear participant pointer", "session_id", sessionID, "error", err)
		}
	}
	return Applied, nil
}

// Start runs the polling loop until ctx is done, Stop or Close is called.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.polling || s.closed {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.polling = true
	s.stopPolling = cancel
	s.mu.Unlock()

	go s.loop(ctx)
}

func (s *Synchronizer) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.isPolling() {
				return
			}
			if res, err := s.PollOnce(ctx); err != nil {
				s.log.Warn("poll tick failed", "result", res.String(), "error", err)
			}
		}
	}
}

func (s *Synchronizer) isPolling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polling
}

// Stop ends the polling loop. In-flight requests are not aborted.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	s.polling = false
	cancel := s.stopPolling
	s.stopPolling = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until every best-effort task has finished.
func (s *Synchronizer) Wait() {
	s.tasks.Wait()
}

// Close stops polling, invalidates the active session so late completions
// are ignored, and waits for best-effort tasks.
func (s *Synchronizer) Close() {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	s.generation++
	s.mu.Unlock()
	s.tasks.Wait()
}

func (s *Synchronizer) authLocked() client.Auth {
	return client.Auth{OwnerToken: s.ownerToken, DeviceID: s.deviceID}
}

func hasParticipant(sess *models.Session, id string) bool {
	_, ok := sess.FindParticipant(id)
	return ok
}
