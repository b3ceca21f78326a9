package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replyforge/replyforge/internal/domain"
)

type TenantRepository struct {
	pool *pgxpool.Pool
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) Create(ctx context.Context, t *domain.Tenant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tenants (id, name, model_name, system_prompt, temperature, max_tokens, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.Name, t.Settings.ModelName, t.Settings.SystemPrompt, t.Settings.Temperature, t.Settings.MaxTokens, t.CreatedAt,
	)
	return err
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, model_name, system_prompt, temperature, max_tokens, created_at
		 FROM tenants WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Settings.ModelName, &t.Settings.SystemPrompt, &t.Settings.Temperature, &t.Settings.MaxTokens, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepository) GetByName(ctx context.Context, name string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, model_name, system_prompt, temperature, max_tokens, created_at
		 FROM tenants WHERE name = $1`,
		name,
	).Scan(&t.ID, &t.Name, &t.Settings.ModelName, &t.Settings.SystemPrompt, &t.Settings.Temperature, &t.Settings.MaxTokens, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, model_name, system_prompt, temperature, max_tokens, created_at
		 FROM tenants ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Settings.ModelName, &t.Settings.SystemPrompt, &t.Settings.Temperature, &t.Settings.MaxTokens, &t.CreatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

func (r *TenantRepository) UpdateSettings(ctx context.Context, id string, settings domain.TenantSettings) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET model_name = $1, system_prompt = $2, temperature = $3, max_tokens = $4 WHERE id = $5`,
		settings.ModelName, settings.SystemPrompt, settings.Temperature, settings.MaxTokens, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}
