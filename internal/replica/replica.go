// Package replica keeps a client's copy of a session's case list in step
// with the shared document.
package replica

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
)

// Source tells where a change came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Change is an accepted update of the local list.
type Change struct {
	Code   string
	Cases  []testcase.TestCase
	Source Source
}

// Option configures a Replica.
type Option func(*Replica)

// WithListener receives every accepted change, outside the replica's locks.
func WithListener(fn func(Change)) Option {
	return func(r *Replica) { r.listener = fn }
}

// WithVersionCheck makes writes fail with repository.ErrConflict when the
// document changed since the last snapshot this replica saw.
func WithVersionCheck(enabled bool) Option {
	return func(r *Replica) { r.checkVersion = enabled }
}

// WithClock overrides the time source used for edit stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Replica) { r.now = now }
}

// WithIDGenerator overrides case id generation.
func WithIDGenerator(fn func() string) Option {
	return func(r *Replica) { r.newID = fn }
}

// Replica applies edits locally first and then writes the full list.
// Remote snapshots replace the local list wholesale.
type Replica struct {
	store        session.Store
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
	checkVersion bool
	listener     func(Change)

	// writeMu keeps store writes in the order their edits were applied.
	writeMu sync.Mutex

	mu       sync.Mutex
	attached bool
	epoch    uint64
	code     string
	role     session.Role
	user     string
	cases    []testcase.TestCase
	version  int64
}

// New creates a detached Replica.
func New(store session.Store, logger *slog.Logger, opts ...Option) *Replica {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Replica{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach starts mirroring doc as user with the given role.
func (r *Replica) Attach(doc session.Session, role session.Role, user string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attached = true
	r.epoch++
	r.code = doc.Code
	r.role = role
	r.user = user
	r.cases = testcase.Clone(doc.Cases)
	r.version = doc.Version
}

// Detach drops local state. Snapshots that arrive later are ignored.
func (r *Replica) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attached = false
	r.epoch++
	r.code = ""
	r.role = ""
	r.user = ""
	r.cases = nil
	r.version = 0
}

// Attached reports whether a session is attached.
func (r *Replica) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached
}

// Snapshot returns a copy of the local list.
func (r *Replica) Snapshot() []testcase.TestCase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return testcase.Clone(r.cases)
}

// Version returns the last document version this replica knows of.
func (r *Replica) Version() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.version
}

// UpdateField sets one field of a case.
func (r *Replica) UpdateField(ctx context.Context, id string, field testcase.Field, value string) error {
	return r.UpdateFields(ctx, id, map[testcase.Field]string{field: value})
}

// UpdateFields sets several fields of a case at once. A move to Failed is
// checked against the other values of the same update.
func (r *Replica) UpdateFields(ctx context.Context, id string, values map[testcase.Field]string) error {
	if len(values) == 0 {
		return nil
	}
	return r.mutate(ctx, "update", func(cases []testcase.TestCase) ([]testcase.TestCase, error) {
		i := testcase.IndexOf(cases, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
		}
		next, err := testcase.Apply(cases[i], values, testcase.Edit{Editor: r.user, At: r.now().UTC()})
		if err != nil {
			return nil, err
		}
		cases[i] = next
		return cases, nil
	})
}

// DeleteCase removes a case.
func (r *Replica) DeleteCase(ctx context.Context, id string) error {
	return r.mutate(ctx, "delete", func(cases []testcase.TestCase) ([]testcase.TestCase, error) {
		i := testcase.IndexOf(cases, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
		}
		return slices.Delete(cases, i, i+1), nil
	})
}

// AppendCases validates every record, gives each a fresh id, and appends
// them after the existing cases. Nothing is appended if any record is invalid.
func (r *Replica) AppendCases(ctx context.Context, raws []testcase.Raw) ([]testcase.TestCase, error) {
	if len(raws) == 0 {
		return nil, nil
	}

	var added []testcase.TestCase
	err := r.mutate(ctx, "append", func(cases []testcase.TestCase) ([]testcase.TestCase, error) {
		taken := make(map[string]struct{}, len(cases)+len(raws))
		for _, tc := range cases {
			taken[tc.ID] = struct{}{}
		}

		added = make([]testcase.TestCase, 0, len(raws))
		for i, raw := range raws {
			tc, err := raw.ToTestCase()
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			tc.ID = r.uniqueID(taken)
			added = append(added, tc)
		}
		return append(cases, added...), nil
	})
	if err != nil && !errors.Is(err, ErrSync) {
		return nil, err
	}
	return testcase.Clone(added), err
}

// ClearAll empties the list.
func (r *Replica) ClearAll(ctx context.Context) error {
	return r.mutate(ctx, "clear", func([]testcase.TestCase) ([]testcase.TestCase, error) {
		return []testcase.TestCase{}, nil
	})
}

// ApplyRemote replaces the local list with doc's when doc is newer than
// anything seen so far and its list differs. It reports whether the local
// list changed.
func (r *Replica) ApplyRemote(doc session.Session) bool {
	return r.applyRemote(doc, false)
}

func (r *Replica) applyRemote(doc session.Session, force bool) bool {
	r.mu.Lock()
	stale := doc.Version < r.version || (!force && doc.Version == r.version)
	if !r.attached || doc.Code != r.code || stale {
		r.mu.Unlock()
		return false
	}
	r.version = doc.Version
	if testcase.Equal(r.cases, doc.Cases) {
		r.mu.Unlock()
		return false
	}
	r.cases = testcase.Clone(doc.Cases)
	change := Change{Code: r.code, Cases: testcase.Clone(r.cases), Source: SourceRemote}
	r.mu.Unlock()

	r.notify(change)
	return true
}

// Resync reads the document and applies it, discarding local changes that
// never reached the store.
func (r *Replica) Resync(ctx context.Context) (bool, error) {
	r.mu.Lock()
	attached, code := r.attached, r.code
	r.mu.Unlock()
	if !attached {
		return false, ErrNotAttached
	}

	doc, err := r.store.Get(ctx, code)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSync, err)
	}
	return r.applyRemote(*doc, true), nil
}

func (r *Replica) mutate(ctx context.Context, op string, fn func([]testcase.TestCase) ([]testcase.TestCase, error)) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	if !r.attached {
		r.mu.Unlock()
		return ErrNotAttached
	}
	if !r.role.CanEdit() {
		r.mu.Unlock()
		return ErrReadOnly
	}
	next, err := fn(testcase.Clone(r.cases))
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.cases = next
	code, epoch := r.code, r.epoch
	expected := session.AnyVersion
	if r.checkVersion {
		expected = r.version
	}
	outgoing := testcase.Clone(next)
	change := Change{Code: code, Cases: testcase.Clone(next), Source: SourceLocal}
	r.mu.Unlock()

	r.notify(change)

	version, err := r.store.ReplaceCases(ctx, code, outgoing, expected)
	if err != nil {
		r.logger.Warn("case write failed", "op", op, "code", code, "error", err)
		return fmt.Errorf("%w: %w", ErrSync, err)
	}

	// The store now holds outgoing at version. A remote snapshot applied while
	// the write was in flight is older, so outgoing wins locally too.
	r.mu.Lock()
	if r.epoch != epoch || version <= r.version {
		r.mu.Unlock()
		return nil
	}
	r.version = version
	if testcase.Equal(r.cases, outgoing) {
		r.mu.Unlock()
		return nil
	}
	r.cases = testcase.Clone(outgoing)
	change = Change{Code: code, Cases: testcase.Clone(outgoing), Source: SourceRemote}
	r.mu.Unlock()

	r.notify(change)
	return nil
}

func (r *Replica) notify(change Change) {
	if r.listener != nil {
		r.listener(change)
	}
}

func (r *Replica) uniqueID(taken map[string]struct{}) string {
	for {
		id := r.newID()
		if _, dup := taken[id]; !dup {
			taken[id] = struct{}{}
			return id
		}
	}
}
