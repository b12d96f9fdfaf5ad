package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasLimitClause(t *testing.T) {
	assert.True(t, hasLimitClause("SELECT * FROM message LIMIT 1"))
	assert.True(t, hasLimitClause("SELECT * FROM message\n\t\tlimit $limit"))
	assert.False(t, hasLimitClause("SELECT * FROM message"))
	assert.False(t, hasLimitClause("SELECT * FROM unlimited"))
}

func TestGetTimeoutFromContext(t *testing.T) {
	t.Run("uses default", func(t *testing.T) {
		ctx, cancel := getTimeoutFromContext(context.Background(), time.Minute, ContextKeyQueryTimeout)
		defer cancel()
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, time.Second)
	})

	t.Run("override wins", func(t *testing.T) {
		base := WithQueryTimeout(context.Background(), 10*time.Millisecond)
		ctx, cancel := getTimeoutFromContext(base, time.Minute, ContextKeyQueryTimeout)
		defer cancel()
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, time.Second)
	})

	t.Run("other key ignored", func(t *testing.T) {
		base := WithExecuteTimeout(context.Background(), 10*time.Millisecond)
		ctx, cancel := getTimeoutFromContext(base, time.Minute, ContextKeyQueryTimeout)
		defer cancel()
		deadline, _ := ctx.Deadline()
		assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, time.Second)
	})

	t.Run("zero means no deadline", func(t *testing.T) {
		ctx, cancel := getTimeoutFromContext(context.Background(), 0, ContextKeyQueryTimeout)
		defer cancel()
		_, ok := ctx.Deadline()
		assert.False(t, ok)
	})
}

func TestExecutor_Integration(t *testing.T) {
	conn, _ := setupRootDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := conn.DB()
	require.NoError(t, err)

	t.Run("Query returns rows", func(t *testing.T) {
		rows, err := Query[int](ctx, db, "SELECT VALUE n FROM [{ n: 1 }, { n: 2 }]", nil)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, rows)
	})

	t.Run("QueryOne adds a limit", func(t *testing.T) {
		row, err := QueryOne[int](ctx, db, "SELECT VALUE n FROM [{ n: 7 }, { n: 8 }]", nil)
		require.NoError(t, err)
		require.NotNil(t, row)
		assert.Equal(t, 7, *row)
	})

	t.Run("QueryOne returns nil when empty", func(t *testing.T) {
		row, err := QueryOne[int](ctx, db, "SELECT VALUE n FROM []", nil)
		require.NoError(t, err)
		assert.Nil(t, row)
	})

	t.Run("Execute reports statement errors", func(t *testing.T) {
		err := Execute(ctx, db, "THROW 'boom'", nil)
		require.Error(t, err)
	})
}
