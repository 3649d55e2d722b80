//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/okian/helix/internal/adapters/repository"
	"github.com/okian/helix/internal/adapters/repository/storetest"
	"github.com/okian/helix/internal/domain/model"
)

const testImage = "postgres:16-alpine"

var (
	sharedURL     string
	sharedURLOnce sync.Once
	sharedURLErr  error
)

// databaseURL starts one container per test binary.
func databaseURL(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	sharedURLOnce.Do(func() {
		sharedURL, sharedURLErr = startContainer()
	})
	if sharedURLErr != nil {
		t.Fatalf("Failed to start postgres: %v", sharedURLErr)
	}
	return sharedURL
}

func startContainer() (string, error) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        testImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "helix",
			"POSTGRES_USER":     "helix",
			"POSTGRES_PASSWORD": "helix",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start test container: %w", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("failed to get container port: %w", err)
	}
	return fmt.Sprintf("postgres://helix:helix@%s:%s/helix?sslmode=disable", host, port.Port()), nil
}

func freshStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, databaseURL(t), WithMaxConns(8))
	require.NoError(t, err)
	_, err = s.pool.Exec(ctx, `TRUNCATE award_log, confidence_log, period_usage, skill_points,
		helix_points, skill_confidence, contributions RESTART IDENTITY`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store { return freshStore(t) })
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := freshStore(t)
	require.NoError(t, Migrate(context.Background(), s.pool, nil))
}

func TestConcurrentApplyAcrossConnections(t *testing.T) {
	s := freshStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateContribution(ctx, model.Contribution{
		ID: "c1", EmployeeID: "e1", ProjectID: "p1", SkillUsed: "Go",
		Role: model.RoleLead, Level: model.LevelModerate, ConfidenceImpact: 5,
		Status: model.StatusValidated, SubmittedAt: at, ValidatedAt: &at,
	}))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ApplyConfidence(ctx, model.ConfidenceLogEntry{
				EmployeeID: "e1", Skill: "Go", SourceContributionID: "c1",
				OldConfidence: 0, NewConfidence: 5.5, Increment: 5.5,
				BaseImpact: 5, RoleMultiplier: 1.1, DiminishingFactor: 1,
				ContributionLevel: model.LevelModerate, Role: model.RoleLead,
				Period: model.PeriodOf(at), TablesVersion: "v1", AppliedAt: at,
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, repository.ErrConflict)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)

	u, err := s.GetPeriodUsage(ctx, "e1", "Go", model.PeriodOf(at))
	require.NoError(t, err)
	require.Equal(t, 1, u.AppliedCount)
}
