package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/adapters/repository/sqlite"
	"github.com/okian/helix/internal/adapters/repository/storetest"
	"github.com/okian/helix/internal/domain/model"
)

func openTemp(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "helix.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store { return openTemp(t) })
}

func TestSQLiteReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "helix.db")

	s, err := sqlite.Open(path)
	require.NoError(t, err)
	at := time.Date(2026, 5, 4, 9, 0, 0, 123456789, time.UTC)
	require.NoError(t, s.CreateContribution(ctx, model.Contribution{
		ID: "c1", EmployeeID: "e1", ProjectID: "p1", SkillUsed: "Go",
		Role: model.RoleArchitect, Level: model.LevelSignificant, ConfidenceImpact: 7.25,
		Status: model.StatusPending, SubmittedAt: at,
	}))
	require.NoError(t, s.Close())

	s, err = sqlite.Open(path)
	require.NoError(t, err)
	defer s.Close()

	c, err := s.GetContribution(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, c.SubmittedAt.Equal(at), "nanosecond timestamps survive a round trip")
	assert.Equal(t, model.RoleArchitect, c.Role)
	assert.InDelta(t, 7.25, c.ConfidenceImpact, 1e-9)
}

func TestSQLiteOpenBadPath(t *testing.T) {
	_, err := sqlite.Open(filepath.Join(t.TempDir(), "missing", "dir", "helix.db"))
	assert.Error(t, err)
}
