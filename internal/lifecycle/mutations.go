package lifecycle

import (
	"context"
	"errors"

	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/replica"
	"github.com/rpggio/casetrack/internal/repository"
)

// UpdateField sets one field of a case.
func (m *Manager) UpdateField(ctx context.Context, id string, field testcase.Field, value string) error {
	return m.report(ctx, "update_field", id, m.replica.UpdateField(ctx, id, field, value))
}

// UpdateFields sets several fields of a case in one change.
func (m *Manager) UpdateFields(ctx context.Context, id string, values map[testcase.Field]string) error {
	return m.report(ctx, "update_fields", id, m.replica.UpdateFields(ctx, id, values))
}

// DeleteCase removes a case.
func (m *Manager) DeleteCase(ctx context.Context, id string) error {
	return m.report(ctx, "delete_case", id, m.replica.DeleteCase(ctx, id))
}

// AppendCases ingests raw records. On a sync failure the added cases are
// still returned since they remain in the local list.
func (m *Manager) AppendCases(ctx context.Context, raws []testcase.Raw) ([]testcase.TestCase, error) {
	added, err := m.replica.AppendCases(ctx, raws)
	return added, m.report(ctx, "append_cases", "", err)
}

// ClearAll removes every case.
func (m *Manager) ClearAll(ctx context.Context) error {
	return m.report(ctx, "clear_all", "", m.replica.ClearAll(ctx))
}

// Resync reloads the document from the store.
func (m *Manager) Resync(ctx context.Context) error {
	if _, err := m.replica.Resync(ctx); err != nil {
		if errors.Is(err, replica.ErrNotAttached) {
			return ErrNotInSession
		}
		return err
	}
	return nil
}

// report converts a mutation failure into UI events and returns it.
func (m *Manager) report(ctx context.Context, op, caseID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, replica.ErrNotAttached) {
		err = ErrNotInSession
	}

	data := map[string]any{"op": op, "error": err.Error()}
	if caseID != "" {
		data["caseId"] = caseID
	}

	switch {
	case errors.Is(err, repository.ErrConflict):
		m.emitter.Emit(EventSyncConflict, data)
		if _, resyncErr := m.replica.Resync(ctx); resyncErr != nil {
			m.logger.Warn("resync after conflict failed", "op", op, "error", resyncErr)
		}
	case errors.Is(err, replica.ErrSync):
		m.emitter.Emit(EventSyncError, data)
	default:
		m.emitter.Emit(EventValidationRejected, data)
	}
	return err
}
