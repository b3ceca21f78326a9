//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replyforge/replyforge/internal/domain"
	"github.com/replyforge/replyforge/internal/testutil"
)

func TestTenantRepository_Create(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenantRepo := NewTenantRepository(pool)

	tenant := domain.NewTenant(uuid.NewString(), "Acme Support", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, tenantRepo.Create(ctx, tenant))

	retrieved, err := tenantRepo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, retrieved.ID)
	assert.Equal(t, "Acme Support", retrieved.Name)
	assert.Equal(t, domain.DefaultTenantSettings(), retrieved.Settings)
	assert.Equal(t, tenant.CreatedAt, retrieved.CreatedAt)
}

func TestTenantRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenantRepo := NewTenantRepository(pool)

	_, err := tenantRepo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestTenantRepository_GetByName(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenantRepo := NewTenantRepository(pool)

	tenant := domain.NewTenant(uuid.NewString(), "Named Tenant", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, tenantRepo.Create(ctx, tenant))

	retrieved, err := tenantRepo.GetByName(ctx, "Named Tenant")
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, retrieved.ID)

	_, err = tenantRepo.GetByName(ctx, "No Such Tenant")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestTenantRepository_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenantRepo := NewTenantRepository(pool)

	tenant := domain.NewTenant(uuid.NewString(), "Settings Tenant", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, tenantRepo.Create(ctx, tenant))

	updated := domain.TenantSettings{
		ModelName:    "gpt-4o",
		SystemPrompt: "Answer tersely.",
		Temperature:  0.5,
		MaxTokens:    600,
	}
	require.NoError(t, tenantRepo.UpdateSettings(ctx, tenant.ID, updated))

	retrieved, err := tenantRepo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, retrieved.Settings)
}

func TestTenantRepository_List(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	tenantRepo := NewTenantRepository(pool)

	first := domain.NewTenant(uuid.NewString(), "First Tenant", time.Now().UTC().Truncate(time.Microsecond))
	second := domain.NewTenant(uuid.NewString(), "Second Tenant", time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, tenantRepo.Create(ctx, first))
	require.NoError(t, tenantRepo.Create(ctx, second))

	tenants, err := tenantRepo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 2)

	ids := []string{tenants[0].ID, tenants[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}
