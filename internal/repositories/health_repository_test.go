package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/domain"
)

func passing(context.Context) error { return nil }

func failing(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestDependencyHealthRepositoryCollect(t *testing.T) {
	storeDown := &StoreError{Op: "ping", Kind: ErrorKindUnavailable, Err: errors.New("connection refused")}

	cases := []struct {
		name       string
		checks     []DependencyCheck
		wantStatus string
		wantDetail map[string]string
	}{
		{
			name:       "all passing",
			checks:     []DependencyCheck{{Name: "orders", Check: passing}, {Name: "carts", Check: passing}},
			wantStatus: domain.HealthStatusOK,
			wantDetail: map[string]string{"orders": "ok", "carts": "ok"},
		},
		{
			name: "optional failure degrades",
			checks: []DependencyCheck{
				{Name: "events", Optional: true, Check: failing(errors.New("broker unreachable"))},
				{Name: "orders", Check: passing},
			},
			wantStatus: domain.HealthStatusDegraded,
			wantDetail: map[string]string{"events": "failed", "orders": "ok"},
		},
		{
			name: "required failure wins over optional",
			checks: []DependencyCheck{
				{Name: "events", Optional: true, Check: failing(errors.New("broker unreachable"))},
				{Name: "orders", Check: failing(storeDown)},
			},
			wantStatus: domain.HealthStatusError,
			wantDetail: map[string]string{"events": "failed", "orders": "unavailable"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
			repo, err := NewDependencyHealthRepository(tc.checks, WithDependencyClock(func() time.Time { return now }))
			require.NoError(t, err)

			report, err := repo.Collect(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, report.Status)
			assert.True(t, report.GeneratedAt.Equal(now))
			require.Len(t, report.Checks, len(tc.wantDetail))
			for name, detail := range tc.wantDetail {
				assert.Equal(t, detail, report.Checks[name].Detail, name)
			}
		})
	}
}

func TestDependencyHealthRepositoryTimeout(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{{
		Name:    "orders",
		Timeout: 5 * time.Millisecond,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}})
	require.NoError(t, err)

	report, err := repo.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusError, report.Status)
	assert.Equal(t, "timeout", report.Checks["orders"].Detail)
	assert.NotEmpty(t, report.Checks["orders"].Error)
}

func TestNewDependencyHealthRepositoryValidation(t *testing.T) {
	_, err := NewDependencyHealthRepository(nil)
	assert.Error(t, err)

	_, err = NewDependencyHealthRepository([]DependencyCheck{{Name: "x"}})
	assert.Error(t, err)

	_, err = NewDependencyHealthRepository([]DependencyCheck{{Name: " ", Check: passing}})
	assert.Error(t, err)

	_, err = NewDependencyHealthRepository([]DependencyCheck{{Name: "x", Check: passing}, {Name: " x ", Check: passing}})
	assert.Error(t, err)
}
