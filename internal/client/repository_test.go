// AngelaMos | 2026
// repository_test.go

package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/daf-manager/internal/core"
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(sqlx.NewDb(db, "sqlmock")), mock
}

var clientRowColumns = []string{
	"id", "name", "email", "phone", "status", "advisor_id", "user_id",
	"primary_address_id", "alternate_address_id",
	"preferences_id", "compliance_id", "access_id",
	"created_at", "updated_at",
}

func clientRow(id string, alternate any) *sqlmock.Rows {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(clientRowColumns).AddRow(
		id, "Hartwell", nil, nil, "ACTIVE", nil, nil,
		"addr-1", alternate, "pref-1", "comp-1", "acc-1", now, now,
	)
}

func expectClientRow(mock sqlmock.Sqlmock, id string, alternate any) {
	mock.ExpectQuery(regexp.QuoteMeta("FROM clients c WHERE c.id = $1")).
		WithArgs(id).
		WillReturnRows(clientRow(id, alternate))
}

// expectCascade expects the locked re-read inside the transaction to return
// a row with the given alternate address, then every delete step in order.
func expectCascade(mock sqlmock.Sqlmock, id string, alternate any, failAt string) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM clients c WHERE c.id = $1 FOR UPDATE")).
		WithArgs(id).
		WillReturnRows(clientRow(id, alternate))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET client_id = NULL")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 2))

	for _, table := range []string{
		"client_invitations", "grant_requests", "daf_accounts", "other_accounts",
		"documents", "document_groups", "successor_plans", "family_members",
		"family_info", "giving_goals", "grant_preferences",
	} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table + " WHERE client_id = $1")).
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	records := []struct{ table, id string }{}
	if alt, ok := alternate.(string); ok {
		records = append(records, struct{ table, id string }{"addresses", alt})
	}
	records = append(records, []struct{ table, id string }{
		{"addresses", "addr-1"},
		{"client_preferences", "pref-1"},
		{"client_compliance", "comp-1"},
		{"client_access", "acc-1"},
		{"clients", id},
	}...)

	for _, rec := range records {
		e := mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + rec.table + " WHERE id = $1")).
			WithArgs(rec.id)
		if rec.table == failAt {
			e.WillReturnError(errors.New("deadlock detected"))
			mock.ExpectRollback()
			return
		}
		e.WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
}

func TestDeleteRunsCascadeInOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	svc := NewService(store, &auditSpy{}, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	expectClientRow(mock, "client-1", nil)
	expectCascade(mock, "client-1", nil, "")

	require.NoError(t, svc.Delete(context.Background(), admin, "client-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUsesRowReadInsideTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	svc := NewService(store, &auditSpy{}, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	expectClientRow(mock, "client-1", "addr-old")
	expectCascade(mock, "client-1", "addr-new", "")

	require.NoError(t, svc.Delete(context.Background(), admin, "client-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReportsClientRemovedConcurrently(t *testing.T) {
	store, mock := newMockStore(t)
	svc := NewService(store, &auditSpy{}, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	expectClientRow(mock, "client-1", nil)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("client-1").
		WillReturnRows(sqlmock.NewRows(clientRowColumns))
	mock.ExpectRollback()

	err := svc.Delete(context.Background(), admin, "client-1")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRollsBackWhenAStepFails(t *testing.T) {
	store, mock := newMockStore(t)
	spy := &auditSpy{}
	svc := NewService(store, spy, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	expectClientRow(mock, "client-1", nil)
	expectCascade(mock, "client-1", nil, "client_compliance")

	err := svc.Delete(context.Background(), admin, "client-1")
	require.ErrorContains(t, err, "deadlock detected")
	require.Empty(t, spy.types())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRecordReportsMissingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM clients WHERE id = $1")).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteRecord(context.Background(), TableClients, "gone")
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRejectsTablesOutsideTheCascade(t *testing.T) {
	store, mock := newMockStore(t)

	err := store.DeleteChildren(context.Background(), TableClients, "client-1")
	require.ErrorIs(t, err, core.ErrInvalidInput)

	err = store.DeleteRecord(context.Background(), Table("users"), "u-1")
	require.ErrorIs(t, err, core.ErrInvalidInput)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetInvitationStatusIsConditional(t *testing.T) {
	store, mock := newMockStore(t)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = $2")).
		WithArgs("inv-1", InvitationPending, InvitationAccepted, &at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetInvitationStatus(context.Background(), "inv-1", InvitationPending, InvitationAccepted, at)
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
