// Package lifecycle drives a participant through signing in, creating or
// joining a session, editing it, and leaving.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/idle"
	"github.com/rpggio/casetrack/internal/replica"
	"github.com/rpggio/casetrack/internal/report"
	"github.com/rpggio/casetrack/internal/repository"
)

const (
	maxCodeAttempts = 5
	cleanupTimeout  = 5 * time.Second
)

// Presence is the part of the presence registry the Manager uses.
type Presence interface {
	Register(ctx context.Context, code, user string, role session.Role) (session.Participant, error)
	MarkOffline(ctx context.Context, code, participantID string) error
	SubscribeOnline(ctx context.Context, code string) (<-chan []session.Participant, func(), error)
	StartHeartbeat(ctx context.Context, code, participantID string) (stop func())
}

// Option configures a Manager.
type Option func(*Manager)

// WithEmitter sets where lifecycle events are sent.
func WithEmitter(emitter EventEmitter) Option {
	return func(m *Manager) { m.emitter = emitter }
}

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock sets the clock for the idle monitor and edit stamps.
func WithClock(clock idle.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithIdleWindow sets the inactivity window. Zero keeps the default.
func WithIdleWindow(window time.Duration) Option {
	return func(m *Manager) { m.idleWindow = window }
}

// WithCodeGenerator overrides session code generation.
func WithCodeGenerator(fn func() (string, error)) Option {
	return func(m *Manager) { m.newCode = fn }
}

// WithReplicaOptions passes options through to the replica.
func WithReplicaOptions(opts ...replica.Option) Option {
	return func(m *Manager) { m.replicaOpts = append(m.replicaOpts, opts...) }
}

// Manager owns the lifecycle state and the session-scoped resources.
type Manager struct {
	store       session.Store
	presence    Presence
	identity    IdentityProvider
	emitter     EventEmitter
	logger      *slog.Logger
	clock       idle.Clock
	idleWindow  time.Duration
	newCode     func() (string, error)
	replicaOpts []replica.Option
	replica     *replica.Replica

	unsubscribeIdentity func()

	// opMu serialises Create, Join and every leave path. Generation
	// changes only happen while it is held.
	opMu sync.Mutex

	mu            sync.Mutex
	gen           uint64
	inSession     bool
	code          string
	role          session.Role
	user          string
	participantID string
	participants  []session.Participant
	filter        Filter
	monitor       *idle.Monitor
	cancelSubs    func()
	stopHeartbeat func()
}

// New creates a Manager. Call Close when done with it.
func New(store session.Store, presence Presence, identity IdentityProvider, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		presence:   presence,
		identity:   identity,
		emitter:    noopEmitter{},
		logger:     slog.Default(),
		clock:      idle.SystemClock,
		idleWindow: idle.DefaultWindow,
		newCode:    session.GenerateCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.idleWindow <= 0 {
		m.idleWindow = idle.DefaultWindow
	}

	replicaOpts := append([]replica.Option{
		replica.WithListener(m.onChange),
		replica.WithClock(m.clock.Now),
	}, m.replicaOpts...)
	m.replica = replica.New(store, m.logger, replicaOpts...)
	m.unsubscribeIdentity = identity.Subscribe(m.onIdentity)
	return m
}

// Close leaves any session and stops watching the identity provider.
func (m *Manager) Close() {
	m.unsubscribeIdentity()
	m.Leave(context.Background())
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	if m.inSession {
		defer m.mu.Unlock()
		return State{
			Phase:         PhaseInSession,
			User:          m.user,
			Code:          m.code,
			Role:          m.role,
			ParticipantID: m.participantID,
		}
	}
	m.mu.Unlock()

	if user, ok := m.identity.Current(); ok {
		return State{Phase: PhaseAuthenticated, User: user}
	}
	return State{Phase: PhaseUnauthenticated}
}

// Cases returns the local case list.
func (m *Manager) Cases() []testcase.TestCase {
	return m.replica.Snapshot()
}

// FilteredCases returns the local case list narrowed by the current filter.
func (m *Manager) FilteredCases() []testcase.TestCase {
	return m.Filter().Apply(m.replica.Snapshot())
}

// Participants returns the latest online snapshot.
func (m *Manager) Participants() []session.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]session.Participant(nil), m.participants...)
}

// Stats summarises the local case list.
func (m *Manager) Stats() testcase.Stats {
	return testcase.ComputeStats(m.replica.Snapshot())
}

// ReportViews derives the failed and commented subsets of the local case
// list along with its stats.
func (m *Manager) ReportViews() report.Views {
	return report.Assemble(m.replica.Snapshot())
}

// Filter returns the current local filter.
func (m *Manager) Filter() Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter
}

// SetFilter replaces the local filter. It has no effect outside a session.
func (m *Manager) SetFilter(f Filter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inSession {
		m.filter = f
	}
}

// Create starts a new session owned by the signed-in user and enters it
// as editor.
func (m *Manager) Create(ctx context.Context) (string, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	user, ok := m.identity.Current()
	if !ok {
		return "", ErrAuthenticationRequired
	}
	log := m.logger.With("op", "create_session", "user", user)

	var doc *session.Session
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := m.newCode()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrSessionCreate, err)
		}
		candidate := session.New(code, user, m.clock.Now())
		err = m.store.Create(ctx, candidate)
		if err == nil {
			doc = candidate
			break
		}
		if !errors.Is(err, repository.ErrAlreadyExists) {
			log.Error("failed to store session", "error", err)
			return "", fmt.Errorf("%w: %w", ErrSessionCreate, err)
		}
		log.Debug("session code collision, retrying", "code", code, "attempt", attempt)
	}
	if doc == nil {
		return "", fmt.Errorf("%w: no free code after %d attempts", ErrSessionCreate, maxCodeAttempts)
	}

	m.leaveLocked(ctx, ReasonManual)
	if err := m.enter(ctx, *doc, user, session.RoleEditor); err != nil {
		log.Error("failed to enter created session", "code", doc.Code, "error", err)
		if delErr := m.store.Delete(ctx, doc.Code); delErr != nil {
			log.Warn("failed to remove abandoned session", "code", doc.Code, "error", delErr)
		}
		return "", fmt.Errorf("%w: %w", ErrSessionCreate, err)
	}

	log.Info("session created", "code", doc.Code)
	return doc.Code, nil
}

// Join enters an existing session. The code is trimmed and uppercased.
func (m *Manager) Join(ctx context.Context, code string, asViewer bool) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	user, ok := m.identity.Current()
	if !ok {
		return ErrAuthenticationRequired
	}
	code = session.NormalizeCode(code)
	if !session.ValidCode(code) {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, code)
	}

	doc, err := m.store.Get(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, code)
	}
	if err != nil {
		return fmt.Errorf("loading session %s: %w", code, err)
	}

	role := session.RoleEditor
	if asViewer {
		role = session.RoleViewer
	}

	m.leaveLocked(ctx, ReasonManual)
	if err := m.enter(ctx, *doc, user, role); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return err
		}
		return fmt.Errorf("joining session %s: %w", code, err)
	}

	m.logger.Info("session joined", "code", code, "user", user, "role", role)
	return nil
}

// Leave exits the current session. It is safe to call at any time.
func (m *Manager) Leave(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.leaveLocked(ctx, ReasonManual)
}

// Logout leaves any session and clears the identity.
func (m *Manager) Logout(ctx context.Context) {
	m.opMu.Lock()
	m.leaveLocked(ctx, ReasonLogout)
	m.opMu.Unlock()

	m.identity.Clear()
}

func (m *Manager) enter(ctx context.Context, doc session.Session, user string, role session.Role) error {
	p, err := m.presence.Register(ctx, doc.Code, user, role)
	if err != nil {
		return err
	}

	// Subscriptions outlive the caller's context; leave cancels them.
	subCtx, cancelSubCtx := context.WithCancel(context.Background())
	docs, cancelDocs, err := m.store.Subscribe(subCtx, doc.Code)
	if err != nil {
		cancelSubCtx()
		m.markOffline(ctx, doc.Code, p.ID)
		return err
	}
	online, cancelOnline, err := m.presence.SubscribeOnline(subCtx, doc.Code)
	if err != nil {
		cancelDocs()
		cancelSubCtx()
		m.markOffline(ctx, doc.Code, p.ID)
		return err
	}
	stopHeartbeat := m.presence.StartHeartbeat(subCtx, doc.Code, p.ID)

	m.replica.Attach(doc, role, user)

	m.mu.Lock()
	m.gen++
	gen := m.gen
	monitor := idle.NewMonitor(m.idleWindow, m.clock, func() { m.expire(gen) })
	m.inSession = true
	m.code = doc.Code
	m.role = role
	m.user = user
	m.participantID = p.ID
	m.participants = nil
	m.filter = Filter{}
	m.monitor = monitor
	m.cancelSubs = func() {
		cancelDocs()
		cancelOnline()
		cancelSubCtx()
	}
	m.stopHeartbeat = stopHeartbeat
	m.mu.Unlock()

	monitor.Start()
	go m.pumpDocuments(gen, docs)
	go m.pumpParticipants(gen, online)

	m.emitter.Emit(EventSessionEntered, map[string]any{
		"code":          doc.Code,
		"role":          string(role),
		"participantId": p.ID,
		"cases":         len(doc.Cases),
	})
	return nil
}

// leaveLocked tears down the session. opMu must be held.
func (m *Manager) leaveLocked(ctx context.Context, reason LeaveReason) bool {
	m.mu.Lock()
	if !m.inSession {
		m.mu.Unlock()
		return false
	}
	m.gen++
	code, participantID := m.code, m.participantID
	monitor, cancelSubs, stopHeartbeat := m.monitor, m.cancelSubs, m.stopHeartbeat
	m.inSession = false
	m.code = ""
	m.role = ""
	m.user = ""
	m.participantID = ""
	m.participants = nil
	m.filter = Filter{}
	m.monitor = nil
	m.cancelSubs = nil
	m.stopHeartbeat = nil
	m.mu.Unlock()

	monitor.Stop()
	cancelSubs()
	stopHeartbeat()
	m.replica.Detach()
	m.markOffline(ctx, code, participantID)

	m.logger.Info("left session", "code", code, "reason", reason)
	m.emitter.Emit(EventSessionLeft, map[string]any{"code": code, "reason": string(reason)})
	return true
}

func (m *Manager) markOffline(ctx context.Context, code, participantID string) {
	if err := m.presence.MarkOffline(ctx, code, participantID); err != nil {
		m.logger.Warn("failed to mark participant offline", "code", code, "participant_id", participantID, "error", err)
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inSession && m.gen == gen
}

func (m *Manager) expire(gen uint64) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.current(gen) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	code := m.State().Code
	m.leaveLocked(ctx, ReasonIdle)
	m.emitter.Emit(EventSessionIdleClosed, map[string]any{
		"code":   code,
		"window": m.idleWindow.String(),
	})
}

// dropped handles a subscription closing underneath an active session.
func (m *Manager) dropped(gen uint64, stream string) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.current(gen) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	code := m.State().Code
	m.logger.Warn("subscription closed while in session", "code", code, "stream", stream)
	m.emitter.Emit(EventSyncError, map[string]any{
		"code":  code,
		"error": fmt.Sprintf("%s stream closed", stream),
	})
	m.leaveLocked(ctx, ReasonRemoved)
}

func (m *Manager) pumpDocuments(gen uint64, docs <-chan session.Session) {
	for doc := range docs {
		if m.current(gen) {
			m.replica.ApplyRemote(doc)
		}
	}
	m.dropped(gen, "document")
}

func (m *Manager) pumpParticipants(gen uint64, online <-chan []session.Participant) {
	for snapshot := range online {
		m.mu.Lock()
		if !m.inSession || m.gen != gen {
			m.mu.Unlock()
			continue
		}
		m.participants = snapshot
		code := m.code
		m.mu.Unlock()

		m.emitter.Emit(EventParticipantsUpdate, map[string]any{
			"code":  code,
			"count": len(snapshot),
		})
	}
	m.dropped(gen, "participants")
}

// onChange runs for every accepted local or remote change of the case list.
func (m *Manager) onChange(change replica.Change) {
	m.mu.Lock()
	if !m.inSession || change.Code != m.code {
		m.mu.Unlock()
		return
	}
	monitor := m.monitor
	m.mu.Unlock()

	monitor.Touch()
	m.emitter.Emit(EventCasesUpdated, map[string]any{
		"code":   change.Code,
		"count":  len(change.Cases),
		"source": string(change.Source),
	})
}

func (m *Manager) onIdentity(user string, ok bool) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	lost := m.inSession && (!ok || user != m.user)
	m.mu.Unlock()
	if !lost {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	m.leaveLocked(ctx, ReasonLogout)
}
