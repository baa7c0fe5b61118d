package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/catalog/domain"
	catalogrepo "github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/catalog/repository"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/plans"
	"github.com/go-chi/chi/v5"
)

type Catalog interface {
	ListAvailableProducts(ctx context.Context) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetCategories(ctx context.Context) ([]*domain.Category, error)
}

type CatalogHandler struct {
	catalog Catalog
	timeout time.Duration
	logger  *slog.Logger
}

func NewCatalogHandler(catalog Catalog, timeout time.Duration, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, timeout: timeout, logger: logger}
}

type planDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Units        int    `json:"units"`
	UnitPrice    int64  `json:"unit_price"`
	MonthlyTotal int64  `json:"monthly_total"`
	Currency     string `json:"currency"`
	Interval     string `json:"interval"`
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListAvailableProducts(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list products failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, catalogrepo.ErrProductNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "get product failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.catalog.GetCategories(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list categories failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) ListPlans(w http.ResponseWriter, _ *http.Request) {
	presets := plans.Presets()
	out := make([]planDTO, 0, len(presets))
	for _, p := range presets {
		out = append(out, planDTO{
			ID:           p.ID,
			Name:         p.Name,
			Units:        p.Units,
			UnitPrice:    p.UnitPrice(),
			MonthlyTotal: p.MonthlyTotal(),
			Currency:     plans.Currency,
			Interval:     p.Interval,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
