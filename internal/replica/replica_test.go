package replica_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/replica"
	"github.com/rpggio/casetrack/internal/repository"
	"github.com/rpggio/casetrack/internal/repository/mocks"
	"github.com/rpggio/casetrack/internal/store"
	"github.com/rpggio/casetrack/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var editTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type changeLog struct {
	mu      sync.Mutex
	changes []replica.Change
}

func (c *changeLog) record(ch replica.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, ch)
}

func (c *changeLog) all() []replica.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]replica.Change{}, c.changes...)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("case-%d", n)
	}
}

func setup(t *testing.T, role session.Role, opts ...replica.Option) (*replica.Replica, *store.Store, *changeLog) {
	t.Helper()

	s := testutil.NewStore(t)
	doc := session.New("ABC123", "alice", editTime)
	require.NoError(t, s.Create(context.Background(), doc))

	log := &changeLog{}
	opts = append([]replica.Option{
		replica.WithListener(log.record),
		replica.WithClock(func() time.Time { return editTime }),
		replica.WithIDGenerator(sequentialIDs()),
	}, opts...)
	r := replica.New(s, nil, opts...)
	r.Attach(*doc, role, "alice")
	return r, s, log
}

func appendTwo(t *testing.T, r *replica.Replica) []testcase.TestCase {
	t.Helper()
	added, err := r.AppendCases(context.Background(), []testcase.Raw{
		{Process: "Login", CaseID: "TC-1", Description: "valid password"},
		{Process: "Login", CaseID: "TC-2", Description: "wrong password", Status: "Passed"},
	})
	require.NoError(t, err)
	require.Len(t, added, 2)
	return added
}

func TestReplica_AppendAssignsIDsAndDefaults(t *testing.T) {
	r, s, log := setup(t, session.RoleEditor)

	added := appendTwo(t, r)
	require.Equal(t, "case-1", added[0].ID)
	require.Equal(t, "case-2", added[1].ID)
	require.Equal(t, testcase.StatusPending, added[0].Status)
	require.Equal(t, testcase.StatusPassed, added[1].Status)

	doc, err := s.Get(context.Background(), "ABC123")
	require.NoError(t, err)
	require.Len(t, doc.Cases, 2)
	require.Equal(t, int64(2), doc.Version)
	require.Equal(t, int64(2), r.Version())

	changes := log.all()
	require.Len(t, changes, 1)
	require.Equal(t, replica.SourceLocal, changes[0].Source)
}

func TestReplica_AppendRejectsInvalidRecord(t *testing.T) {
	r, s, log := setup(t, session.RoleEditor)

	_, err := r.AppendCases(context.Background(), []testcase.Raw{
		{CaseID: "TC-1"},
		{CaseID: "TC-2", Status: "Maybe"},
	})
	require.ErrorIs(t, err, testcase.ErrInvalidRecord)
	require.Empty(t, r.Snapshot())
	require.Empty(t, log.all())

	doc, err := s.Get(context.Background(), "ABC123")
	require.NoError(t, err)
	require.Equal(t, int64(1), doc.Version)
}

func TestReplica_FailedRequiresCommentsAndEvidence(t *testing.T) {
	r, _, _ := setup(t, session.RoleEditor)
	ctx := context.Background()
	added := appendTwo(t, r)
	id := added[0].ID

	err := r.UpdateField(ctx, id, testcase.FieldStatus, "Failed")
	require.ErrorIs(t, err, testcase.ErrMissingComments)
	require.Equal(t, testcase.StatusPending, r.Snapshot()[0].Status)

	require.NoError(t, r.UpdateField(ctx, id, testcase.FieldComments, "button unresponsive"))
	err = r.UpdateField(ctx, id, testcase.FieldStatus, "Failed")
	require.ErrorIs(t, err, testcase.ErrMissingEvidence)

	require.NoError(t, r.UpdateField(ctx, id, testcase.FieldEvidence, "screenshot.png"))
	require.NoError(t, r.UpdateField(ctx, id, testcase.FieldStatus, "Failed"))

	tc := r.Snapshot()[0]
	require.Equal(t, testcase.StatusFailed, tc.Status)
	require.Equal(t, "alice", tc.LastEditor)
	require.NotNil(t, tc.LastEditedAt)
	require.True(t, editTime.Equal(*tc.LastEditedAt))
}

func TestReplica_UpdateFieldsValidatesAgainstSameUpdate(t *testing.T) {
	r, _, _ := setup(t, session.RoleEditor)
	added := appendTwo(t, r)

	err := r.UpdateFields(context.Background(), added[0].ID, map[testcase.Field]string{
		testcase.FieldStatus:   "Failed",
		testcase.FieldComments: "crash",
		testcase.FieldEvidence: "log.txt",
	})
	require.NoError(t, err)
	require.Equal(t, testcase.StatusFailed, r.Snapshot()[0].Status)
}

func TestReplica_NonStatusEditDoesNotStamp(t *testing.T) {
	r, _, _ := setup(t, session.RoleEditor)
	added := appendTwo(t, r)

	require.NoError(t, r.UpdateField(context.Background(), added[0].ID, testcase.FieldSteps, "1. open page"))
	tc := r.Snapshot()[0]
	require.Equal(t, "1. open page", tc.Steps)
	require.Empty(t, tc.LastEditor)
	require.Nil(t, tc.LastEditedAt)
}

func TestReplica_DeleteAndClear(t *testing.T) {
	r, s, _ := setup(t, session.RoleEditor)
	ctx := context.Background()
	added := appendTwo(t, r)

	require.NoError(t, r.DeleteCase(ctx, added[0].ID))
	require.ErrorIs(t, r.DeleteCase(ctx, added[0].ID), replica.ErrCaseNotFound)
	require.Len(t, r.Snapshot(), 1)

	require.NoError(t, r.ClearAll(ctx))
	require.Empty(t, r.Snapshot())

	doc, err := s.Get(ctx, "ABC123")
	require.NoError(t, err)
	require.Empty(t, doc.Cases)
}

func TestReplica_UnknownCase(t *testing.T) {
	r, _, _ := setup(t, session.RoleEditor)
	err := r.UpdateField(context.Background(), "missing", testcase.FieldSteps, "x")
	require.ErrorIs(t, err, replica.ErrCaseNotFound)
}

func TestReplica_ViewerIsReadOnly(t *testing.T) {
	r, s, log := setup(t, session.RoleViewer)
	ctx := context.Background()

	_, err := r.AppendCases(ctx, []testcase.Raw{{CaseID: "TC-1"}})
	require.ErrorIs(t, err, replica.ErrReadOnly)
	require.ErrorIs(t, r.UpdateField(ctx, "x", testcase.FieldSteps, "x"), replica.ErrReadOnly)
	require.ErrorIs(t, r.DeleteCase(ctx, "x"), replica.ErrReadOnly)
	require.ErrorIs(t, r.ClearAll(ctx), replica.ErrReadOnly)
	require.Empty(t, log.all())

	doc, err := s.Get(ctx, "ABC123")
	require.NoError(t, err)
	require.Equal(t, int64(1), doc.Version)
}

func TestReplica_NotAttached(t *testing.T) {
	r := replica.New(testutil.NewStore(t), nil)
	require.ErrorIs(t, r.ClearAll(context.Background()), replica.ErrNotAttached)

	_, err := r.Resync(context.Background())
	require.ErrorIs(t, err, replica.ErrNotAttached)
}

func TestReplica_ApplyRemote(t *testing.T) {
	r, _, log := setup(t, session.RoleViewer)

	remote := session.Session{
		Code:    "ABC123",
		Version: 2,
		Cases:   []testcase.TestCase{{ID: "x", CaseID: "TC-9", Status: testcase.StatusPassed}},
	}
	require.True(t, r.ApplyRemote(remote))
	require.Equal(t, remote.Cases, r.Snapshot())
	require.Equal(t, int64(2), r.Version())

	// Identical content is not a change.
	remote.Version = 3
	require.False(t, r.ApplyRemote(remote))
	require.Equal(t, int64(3), r.Version())

	// Older versions and other sessions are ignored.
	stale := session.Session{Code: "ABC123", Version: 2}
	require.False(t, r.ApplyRemote(stale))
	other := session.Session{Code: "ZZZ999", Version: 10}
	require.False(t, r.ApplyRemote(other))
	require.Len(t, r.Snapshot(), 1)

	changes := log.all()
	require.Len(t, changes, 1)
	require.Equal(t, replica.SourceRemote, changes[0].Source)
}

func TestReplica_DetachIgnoresRemote(t *testing.T) {
	r, _, _ := setup(t, session.RoleEditor)
	r.Detach()

	require.False(t, r.Attached())
	require.False(t, r.ApplyRemote(session.Session{Code: "ABC123", Version: 5, Cases: []testcase.TestCase{{ID: "x"}}}))
	require.Empty(t, r.Snapshot())
}

func TestReplica_TwoReplicasConverge(t *testing.T) {
	editor, s, _ := setup(t, session.RoleEditor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc, err := s.Get(ctx, "ABC123")
	require.NoError(t, err)
	viewer := replica.New(s, nil)
	viewer.Attach(*doc, session.RoleViewer, "bob")

	updates, stop, err := s.Subscribe(ctx, "ABC123")
	require.NoError(t, err)
	defer stop()

	appendTwo(t, editor)

	require.Eventually(t, func() bool {
		select {
		case d := <-updates:
			viewer.ApplyRemote(d)
		default:
		}
		return testcase.Equal(editor.Snapshot(), viewer.Snapshot())
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReplica_WriteFailureKeepsLocalChange(t *testing.T) {
	st := &mocks.SessionStore{}
	st.On("ReplaceCases", mock.Anything, "ABC123", mock.Anything, session.AnyVersion).
		Return(int64(0), errors.New("disk full"))

	r := replica.New(st, nil, replica.WithIDGenerator(sequentialIDs()))
	r.Attach(session.Session{Code: "ABC123", Version: 1}, session.RoleEditor, "alice")

	added, err := r.AppendCases(context.Background(), []testcase.Raw{{CaseID: "TC-1"}})
	require.ErrorIs(t, err, replica.ErrSync)
	require.Len(t, added, 1)
	require.Len(t, r.Snapshot(), 1)
	require.Equal(t, int64(1), r.Version())
	st.AssertExpectations(t)
}

func TestReplica_VersionCheckConflict(t *testing.T) {
	r, s, _ := setup(t, session.RoleEditor, replica.WithVersionCheck(true))
	ctx := context.Background()
	appendTwo(t, r)

	// Another writer moves the document on.
	_, err := s.ReplaceCases(ctx, "ABC123", []testcase.TestCase{}, session.AnyVersion)
	require.NoError(t, err)

	err = r.ClearAll(ctx)
	require.ErrorIs(t, err, replica.ErrSync)
	require.ErrorIs(t, err, repository.ErrConflict)

	changed, err := r.Resync(ctx)
	require.NoError(t, err)
	require.False(t, changed, "local list was already empty")
	require.Equal(t, int64(3), r.Version())

	require.NoError(t, r.ClearAll(ctx))
	require.Equal(t, int64(4), r.Version())
}

func TestReplica_OwnWriteWinsOverSnapshotAppliedInFlight(t *testing.T) {
	st := &mocks.SessionStore{}
	log := &changeLog{}
	r := replica.New(st, nil, replica.WithListener(log.record), replica.WithClock(func() time.Time { return editTime }))
	base := []testcase.TestCase{{ID: "c1", CaseID: "TC-1", Status: testcase.StatusPending}}
	r.Attach(session.Session{Code: "ABC123", Version: 1, Cases: base}, session.RoleEditor, "alice")

	bobs := testcase.Clone(base)
	bobs[0].Steps = "bob edit"

	// Bob's write lands first (v2) and is pushed while ours is still in flight; ours becomes v3.
	st.On("ReplaceCases", mock.Anything, "ABC123", mock.Anything, session.AnyVersion).
		Run(func(mock.Arguments) {
			require.True(t, r.ApplyRemote(session.Session{Code: "ABC123", Version: 2, Cases: bobs}))
		}).
		Return(int64(3), nil)

	require.NoError(t, r.UpdateField(context.Background(), "c1", testcase.FieldDescription, "alice edit"))
	st.AssertExpectations(t)

	require.Equal(t, int64(3), r.Version())
	local := r.Snapshot()
	require.Equal(t, "alice edit", local[0].Description)
	require.Empty(t, local[0].Steps, "store holds our list at v3")

	changes := log.all()
	require.Len(t, changes, 3)
	require.Equal(t, replica.SourceLocal, changes[0].Source)
	require.Equal(t, replica.SourceRemote, changes[1].Source)
	require.Equal(t, "alice edit", changes[2].Cases[0].Description)

	// The echo of our own write changes nothing.
	require.False(t, r.ApplyRemote(session.Session{Code: "ABC123", Version: 3, Cases: local}))
}
