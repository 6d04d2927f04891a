package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redirect-agent-backend/internal/conversation"
	"redirect-agent-backend/internal/db"
)

func newDatabaseStore(t *testing.T, opts Options) (*DatabaseStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewDatabaseStore(db.Wrap(sqlDB, nil), opts), mock
}

func TestDatabaseStoreGet(t *testing.T) {
	ds, mock := newDatabaseStore(t, Options{MaxMessages: 6})

	mock.ExpectQuery("SELECT history").
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"history"}).AddRow([]byte(`[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`)))

	got, err := ds.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, conversation.Turn("hi", "hello"), got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreGetMissing(t *testing.T) {
	ds, mock := newDatabaseStore(t, Options{})

	mock.ExpectQuery("SELECT history").
		WithArgs("nope", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"history"}))

	got, err := ds.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDatabaseStoreGetError(t *testing.T) {
	ds, mock := newDatabaseStore(t, Options{})
	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT history").WillReturnError(boom)

	_, err := ds.Get(context.Background(), "s1")
	assert.ErrorIs(t, err, boom)
}

func TestDatabaseStoreSaveTrims(t *testing.T) {
	ds, mock := newDatabaseStore(t, Options{MaxMessages: 2})
	history := append(conversation.Turn("old", "old"), conversation.Turn("new", "new")...)

	mock.ExpectExec("INSERT INTO conversation_sessions").
		WithArgs("s1", `[{"role":"user","content":"new"},{"role":"assistant","content":"new"}]`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ds.Save(context.Background(), "s1", history))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreAppend(t *testing.T) {
	ds, mock := newDatabaseStore(t, Options{MaxMessages: 6, TTL: time.Hour})

	mock.ExpectExec("ON CONFLICT").
		WithArgs("s1", `[{"role":"user","content":"q"},{"role":"assistant","content":"a"}]`, 6, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ds.Append(context.Background(), "s1", conversation.Turn("q", "a")...))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreDelete(t *testing.T) {
	ds, mock := newDatabaseStore(t, Options{})
	mock.ExpectExec("DELETE FROM conversation_sessions").WithArgs("s1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, ds.Delete(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseStoreRejectsEmptyID(t *testing.T) {
	ds, _ := newDatabaseStore(t, Options{})
	ctx := context.Background()
	assert.ErrorIs(t, ds.Save(ctx, "", nil), ErrEmptySessionID)
	assert.ErrorIs(t, ds.Append(ctx, ""), ErrEmptySessionID)
	assert.ErrorIs(t, ds.Delete(ctx, ""), ErrEmptySessionID)
	_, err := ds.Get(ctx, "")
	assert.ErrorIs(t, err, ErrEmptySessionID)
}
