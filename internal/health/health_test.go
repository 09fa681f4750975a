package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobportal/internal/testutil"
)

func TestServiceReady(t *testing.T) {
	db := testutil.NewDB(t)
	calls := 0
	svc := NewService(
		NewDatabaseChecker(db),
		NewCheckFunc("storage", func(context.Context) error { calls++; return nil }),
	)
	require.NoError(t, svc.Ready(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestServiceReadyStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	reached := false
	svc := NewService(
		NewCheckFunc("storage", func(context.Context) error { return boom }),
		NewCheckFunc("later", func(context.Context) error { reached = true; return nil }),
	)
	err := svc.Ready(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "storage")
	assert.False(t, reached)
}
