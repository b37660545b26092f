package catalog

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryRepositoryScopesByBusiness(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.PutService(&Service{ID: "svc-1", BusinessID: "biz-1", Name: "Corte", DurationMinutes: 30, Active: true})

	svc, err := repo.GetService(context.Background(), "biz-1", "svc-1")
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if svc.DurationMinutes != 30 {
		t.Errorf("duration = %d", svc.DurationMinutes)
	}

	// Same id under another tenant must 404.
	if _, err := repo.GetService(context.Background(), "biz-2", "svc-1"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("cross-tenant lookup = %v, want ErrServiceNotFound", err)
	}
}

func TestInMemoryRepositoryUnknownBusiness(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.GetBusiness(context.Background(), "nope"); !errors.Is(err, ErrBusinessNotFound) {
		t.Fatalf("got %v, want ErrBusinessNotFound", err)
	}
}

func TestResolveServiceAdapter(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.PutService(&Service{ID: "svc-1", BusinessID: "biz-1", DurationMinutes: 45, Active: false})

	resolver := ResolveService(repo)
	info, err := resolver.ResolveService(context.Background(), "biz-1", "svc-1")
	if err != nil {
		t.Fatalf("ResolveService: %v", err)
	}
	if info.DurationMinutes != 45 || info.Active {
		t.Errorf("info = %+v", info)
	}

	if _, err := resolver.ResolveService(context.Background(), "biz-1", "missing"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("got %v, want ErrServiceNotFound", err)
	}
}
