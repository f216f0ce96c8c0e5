package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storefront/internal/apperr"
	"storefront/internal/catalog"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptionsFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if opts.Paginated() {
		page, err := s.catalog.ProductsPage(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
		return
	}

	products, err := s.catalog.Products(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.catalog.ProductByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if product == nil {
		writeError(w, apperr.New(apperr.KindNotFound, "product not found"))
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.catalog.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func listOptionsFromQuery(r *http.Request) (catalog.ListOptions, error) {
	q := r.URL.Query()
	opts := catalog.ListOptions{
		Category: q.Get("category"),
	}

	switch sort := q.Get("sort"); sort {
	case "", "created_at":
		opts.SortBy = catalog.SortCreatedAt
	case "price":
		opts.SortBy = catalog.SortPrice
	case "name":
		opts.SortBy = catalog.SortName
	default:
		return opts, apperr.Newf(apperr.KindValidation, "unknown sort field %q", sort)
	}

	switch order := q.Get("order"); order {
	case "", "desc":
		opts.SortOrder = catalog.Desc
	case "asc":
		opts.SortOrder = catalog.Asc
	default:
		return opts, apperr.Newf(apperr.KindValidation, "unknown sort order %q", order)
	}

	var err error
	if opts.Limit, err = intQuery(q.Get("limit")); err != nil {
		return opts, apperr.New(apperr.KindValidation, "limit must be a positive integer")
	}
	if opts.Page, err = intQuery(q.Get("page")); err != nil {
		return opts, apperr.New(apperr.KindValidation, "page must be a positive integer")
	}
	if opts.PageSize, err = intQuery(q.Get("page_size")); err != nil {
		return opts, apperr.New(apperr.KindValidation, "page_size must be a positive integer")
	}
	if (opts.Page > 0) != (opts.PageSize > 0) {
		return opts, apperr.New(apperr.KindValidation, "page and page_size must be given together")
	}
	return opts, nil
}

func intQuery(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.New(apperr.KindValidation, "not a positive integer")
	}
	return n, nil
}
