package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agendafacil/booking-platform/internal/schedule"
)

// Repository reads services and businesses.
type Repository interface {
	GetService(ctx context.Context, businessID, serviceID string) (*Service, error)
	ListServices(ctx context.Context, businessID string) ([]Service, error)
	GetBusiness(ctx context.Context, businessID string) (*Business, error)
}

// PostgresRepository reads the catalog from the relational database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// GetService fetches a service scoped to the business. Soft-deleted rows are
// invisible.
func (r *PostgresRepository) GetService(ctx context.Context, businessID, serviceID string) (*Service, error) {
	query := `
		SELECT id, business_id, name, duration_minutes, active, created_at
		FROM services
		WHERE id = $1 AND business_id = $2 AND deleted_at IS NULL
	`
	var svc Service
	err := r.pool.QueryRow(ctx, query, serviceID, businessID).Scan(
		&svc.ID,
		&svc.BusinessID,
		&svc.Name,
		&svc.DurationMinutes,
		&svc.Active,
		&svc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("catalog: select service: %w", err)
	}
	return &svc, nil
}

// ListServices returns the active services of a business, stable order.
func (r *PostgresRepository) ListServices(ctx context.Context, businessID string) ([]Service, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, business_id, name, duration_minutes, active, created_at
		FROM services
		WHERE business_id = $1 AND active AND deleted_at IS NULL
		ORDER BY name
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var svc Service
		if err := rows.Scan(&svc.ID, &svc.BusinessID, &svc.Name, &svc.DurationMinutes, &svc.Active, &svc.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate services: %w", err)
	}
	return services, nil
}

// GetBusiness fetches a business row.
func (r *PostgresRepository) GetBusiness(ctx context.Context, businessID string) (*Business, error) {
	query := `
		SELECT id, name, owner_email, owner_phone
		FROM businesses
		WHERE id = $1 AND deleted_at IS NULL
	`
	var biz Business
	err := r.pool.QueryRow(ctx, query, businessID).Scan(&biz.ID, &biz.Name, &biz.OwnerEmail, &biz.OwnerPhone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("catalog: select business: %w", err)
	}
	return &biz, nil
}

// ResolveService adapts the repository to the availability engine's view.
func ResolveService(repo Repository) schedule.ServiceResolver {
	return resolverFunc{repo: repo}
}

type resolverFunc struct {
	repo Repository
}

func (r resolverFunc) ResolveService(ctx context.Context, businessID, serviceID string) (schedule.ServiceInfo, error) {
	svc, err := r.repo.GetService(ctx, businessID, serviceID)
	if err != nil {
		return schedule.ServiceInfo{}, err
	}
	return schedule.ServiceInfo{ID: svc.ID, DurationMinutes: svc.DurationMinutes, Active: svc.Active}, nil
}

// InMemoryRepository is a map-backed Repository for tests and local runs.
type InMemoryRepository struct {
	mu         sync.RWMutex
	services   map[string]*Service
	businesses map[string]*Business
}

// NewInMemoryRepository creates an empty in-memory catalog.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		services:   make(map[string]*Service),
		businesses: make(map[string]*Business),
	}
}

// PutService registers a service.
func (r *InMemoryRepository) PutService(svc *Service) {
	r.mu.Lock()
	r.services[svc.ID] = svc
	r.mu.Unlock()
}

// PutBusiness registers a business.
func (r *InMemoryRepository) PutBusiness(biz *Business) {
	r.mu.Lock()
	r.businesses[biz.ID] = biz
	r.mu.Unlock()
}

// GetService retrieves a service scoped to the business.
func (r *InMemoryRepository) GetService(ctx context.Context, businessID, serviceID string) (*Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[serviceID]
	if !ok || svc.BusinessID != businessID {
		return nil, ErrServiceNotFound
	}
	return svc, nil
}

// ListServices returns the active services of a business sorted by name.
func (r *InMemoryRepository) ListServices(ctx context.Context, businessID string) ([]Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var services []Service
	for _, svc := range r.services {
		if svc.BusinessID == businessID && svc.Active {
			services = append(services, *svc)
		}
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services, nil
}

// GetBusiness retrieves a business.
func (r *InMemoryRepository) GetBusiness(ctx context.Context, businessID string) (*Business, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	biz, ok := r.businesses[businessID]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	return biz, nil
}
