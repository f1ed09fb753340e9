package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/threadgraph/store"
	"github.com/smallnest/threadgraph/store/storetest"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *CheckpointStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewCheckpointStoreWithPool(mock, "checkpoints")
}

func TestCheckpointStore_InitSchema(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS checkpoints")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_PutFirstVersion(t *testing.T) {
	mock, s := newMock(t)

	cp := &store.Checkpoint{
		ThreadID:  "t1",
		State:     storetest.SampleState(),
		Version:   1,
		UpdatedAt: time.Now(),
	}
	stateJSON, err := json.Marshal(cp.State)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO checkpoints")).
		WithArgs("t1", stateJSON, 1, cp.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Put(context.Background(), cp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_PutNextVersion(t *testing.T) {
	mock, s := newMock(t)

	cp := &store.Checkpoint{
		ThreadID:  "t1",
		State:     storetest.SampleState(),
		Version:   3,
		UpdatedAt: time.Now(),
	}
	stateJSON, err := json.Marshal(cp.State)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE checkpoints SET state = $2, version = $3, updated_at = $4")).
		WithArgs("t1", stateJSON, 3, cp.UpdatedAt, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Put(context.Background(), cp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_PutConflict(t *testing.T) {
	t.Run("thread already exists", func(t *testing.T) {
		mock, s := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (thread_id) DO NOTHING")).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		err := s.Put(context.Background(), &store.Checkpoint{ThreadID: "t1", Version: 1})
		assert.ErrorIs(t, err, store.ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row moved on", func(t *testing.T) {
		mock, s := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("WHERE thread_id = $1 AND version = $5")).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := s.Put(context.Background(), &store.Checkpoint{ThreadID: "t1", Version: 2})
		assert.ErrorIs(t, err, store.ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid version", func(t *testing.T) {
		mock, s := newMock(t)
		err := s.Put(context.Background(), &store.Checkpoint{ThreadID: "t1"})
		assert.ErrorIs(t, err, store.ErrVersionConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCheckpointStore_Get(t *testing.T) {
	mock, s := newMock(t)

	updated := time.Now()
	stateJSON, err := json.Marshal(storetest.SampleState())
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"thread_id", "state", "version", "updated_at"}).
		AddRow("t1", stateJSON, 2, updated)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT thread_id, state, version, updated_at FROM checkpoints WHERE thread_id = $1")).
		WithArgs("t1").
		WillReturnRows(rows)

	cp, err := s.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", cp.ThreadID)
	assert.Equal(t, 2, cp.Version)
	assert.Equal(t, storetest.SampleState(), cp.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_GetNotFound(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT thread_id")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrCheckpointNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_GetDatabaseError(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT thread_id")).
		WithArgs("t1").
		WillReturnError(errors.New("connection refused"))

	_, err := s.Get(context.Background(), "t1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrCheckpointNotFound)
	assert.Contains(t, err.Error(), "failed to load checkpoint")
}

func TestCheckpointStore_Delete(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM checkpoints WHERE thread_id = $1")).
		WithArgs("t1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.Delete(context.Background(), "t1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_List(t *testing.T) {
	mock, s := newMock(t)

	rows := pgxmock.NewRows([]string{"thread_id"}).AddRow("a").AddRow("b")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT thread_id FROM checkpoints ORDER BY thread_id ASC")).
		WillReturnRows(rows)

	ids, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStore_PutError(t *testing.T) {
	mock, s := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO checkpoints")).
		WillReturnError(errors.New("disk full"))

	err := s.Put(context.Background(), &store.Checkpoint{ThreadID: "t1", Version: 1})
	assert.ErrorContains(t, err, "failed to save checkpoint")
	assert.NotErrorIs(t, err, store.ErrVersionConflict)
}

func TestNewCheckpointStoreWithPool_DefaultTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewCheckpointStoreWithPool(mock, "")
	assert.Equal(t, defaultTable, s.tableName)
}
