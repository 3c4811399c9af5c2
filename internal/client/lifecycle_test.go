package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/casetrack/internal/client"
	"github.com/rpggio/casetrack/internal/domain/session"
	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/lifecycle"
	"github.com/rpggio/casetrack/internal/presence"
	"github.com/rpggio/casetrack/internal/replica"
	"github.com/rpggio/casetrack/internal/testserver"
	"github.com/rpggio/casetrack/internal/testutil"
	"github.com/stretchr/testify/require"
)

func newRemoteManager(t *testing.T, serverURL, user string) (*lifecycle.Manager, *testutil.EventRecorder) {
	t.Helper()
	c := client.New(serverURL, user, client.WithReconnectBackoff(10*time.Millisecond, 100*time.Millisecond))
	events := &testutil.EventRecorder{}
	m := lifecycle.New(c, presence.NewRegistry(c, nil, presence.WithHeartbeat(0)), lifecycle.NewMemoryIdentity(user),
		lifecycle.WithEmitter(events))
	t.Cleanup(m.Close)
	return m, events
}

func TestRemoteSession_EditorAndViewerConverge(t *testing.T) {
	server := testserver.New(t)
	ctx := context.Background()

	alice, _ := newRemoteManager(t, server.URL, "alice@example.com")
	bob, bobEvents := newRemoteManager(t, server.URL, "bob@example.com")

	code, err := alice.Create(ctx)
	require.NoError(t, err)
	added, err := alice.AppendCases(ctx, []testcase.Raw{
		{Process: "Checkout", CaseID: "TC-1", Description: "pay by card"},
		{Process: "Checkout", CaseID: "TC-2", Description: "pay by voucher"},
	})
	require.NoError(t, err)

	require.NoError(t, bob.Join(ctx, code, true))
	require.Len(t, bob.Cases(), 2)

	require.NoError(t, alice.UpdateFields(ctx, added[0].ID, map[testcase.Field]string{
		testcase.FieldStatus:   "Failed",
		testcase.FieldComments: "card declined",
		testcase.FieldEvidence: "trace-42.har",
	}))

	require.Eventually(t, func() bool {
		cases := bob.Cases()
		return len(cases) == 2 && cases[0].Status == testcase.StatusFailed
	}, 5*time.Second, 20*time.Millisecond)

	require.ErrorIs(t, bob.DeleteCase(ctx, added[0].ID), replica.ErrReadOnly)

	require.Eventually(t, func() bool {
		online := alice.Participants()
		return len(online) == 2 && online[1].Role == session.RoleViewer
	}, 5*time.Second, 20*time.Millisecond)

	bob.Leave(ctx)
	require.Eventually(t, func() bool { return len(alice.Participants()) == 1 }, 5*time.Second, 20*time.Millisecond)
	require.Len(t, bobEvents.Named(lifecycle.EventSessionLeft), 1)

	// Deleting the document removes alice from the session.
	require.NoError(t, server.Store.Delete(ctx, code))
	require.Eventually(t, func() bool { return !alice.State().InSession() }, 5*time.Second, 20*time.Millisecond)
}
