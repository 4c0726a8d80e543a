package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/internal/catalog"
	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/logger"
)

func newTestRouter(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Config == nil {
		deps.Config = &config.Config{}
		deps.Config.App.Env = "test"
	}
	if deps.Logger == nil {
		deps.Logger = logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	}
	return NewRouter(deps)
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Kzarre-Env"); got != "test" {
		t.Fatalf("unexpected env header %q", got)
	}
}

func TestRouterAdminRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t, Deps{})

	paths := []string{
		"/api/admin/v1/products",
		"/api/admin/v1/orders",
		"/api/admin/v1/roles",
		"/api/admin/v1/admins",
		"/api/admin/v1/audit/logs",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s without credentials, got %d", path, rec.Code)
		}
	}
}

func TestRouterPublicProductList(t *testing.T) {
	stub := &stubCatalogService{list: &catalog.ProductList{}}
	router := newTestRouter(t, Deps{Catalog: stub})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if stub.lastFilters == nil {
		t.Fatalf("expected ListProducts to be invoked")
	}
	if !stub.lastFilters.ActiveOnly {
		t.Fatalf("storefront listing should restrict to active products")
	}
}

func TestRouterUnknownRoute(t *testing.T) {
	router := newTestRouter(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

type stubCatalogService struct {
	list        *catalog.ProductList
	lastFilters *catalog.ProductFilters
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, input catalog.CreateProductInput) (*catalog.ProductDTO, error) {
	panic("unimplemented")
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, productID uuid.UUID, input catalog.UpdateProductInput) (*catalog.ProductDTO, error) {
	panic("unimplemented")
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	panic("unimplemented")
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID uuid.UUID) (*catalog.ProductDTO, error) {
	panic("unimplemented")
}

func (s *stubCatalogService) GetProductBySlug(ctx context.Context, slug string) (*catalog.ProductDTO, error) {
	panic("unimplemented")
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filters catalog.ProductFilters) (*catalog.ProductList, error) {
	s.lastFilters = &filters
	return s.list, nil
}
