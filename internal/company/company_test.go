package company

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/internal/db/dbtest"
)

func TestCompanySettings(t *testing.T) {
	ctx := context.Background()
	s := NewService(dbtest.Open(t))

	_, err := s.Create(ctx, "  ", "")
	require.ErrorIs(t, err, ErrNameRequired)
	_, err = s.Create(ctx, "Acme", "not-an-email")
	require.ErrorIs(t, err, ErrInvalidEmail)

	c, err := s.Create(ctx, "Acme", "Boss@Acme.test")
	require.NoError(t, err)
	assert.Equal(t, "boss@acme.test", c.AdminEmail)
	assert.Nil(t, c.EnableLowStockAlerts)
	assert.True(t, c.AlertsEnabled())

	off := false
	got, err := s.UpdateSettings(ctx, c.ID, Settings{EnableLowStockAlerts: &off})
	require.NoError(t, err)
	require.NotNil(t, got.EnableLowStockAlerts)
	assert.False(t, got.AlertsEnabled())
	assert.Equal(t, "boss@acme.test", got.AdminEmail)

	name := "Acme Plumbing"
	got, err = s.UpdateSettings(ctx, c.ID, Settings{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", got.Name)
	assert.False(t, got.AlertsEnabled())

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.UpdateSettings(ctx, "missing", Settings{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)
}
