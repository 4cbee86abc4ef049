package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/klari-app/klari-server/internal/api/http/response"
	"github.com/klari-app/klari-server/internal/logger"
	"github.com/klari-app/klari-server/internal/model"
)

const (
	defaultCatalogPageSize = 20
	maxImageBytes          = 10 << 20
	sniffLen               = 512
)

// ProductService is the catalog API.
type ProductService interface {
	Create(ctx context.Context, product model.Product) (model.Product, error)
	CreateBulk(ctx context.Context, products []model.Product) ([]model.Product, error)
	Get(ctx context.Context, id int64) (model.Product, error)
	GetSummary(ctx context.Context, id int64) (model.ProductSummary, error)
	Update(ctx context.Context, product model.Product) (model.Product, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.Product], error)
	ListSummaries(ctx context.Context, filter model.ProductFilter, page model.PageRequest) (model.Page[model.ProductSummary], error)
	UploadImage(ctx context.Context, id int64, reader io.Reader, contentType string) (model.Product, error)
	OpenImage(ctx context.Context, id int64) (io.ReadCloser, error)
}

type Product struct {
	products  ProductService
	validator *Validator
	logger    *logger.Logger
}

func NewProduct(products ProductService, validator *Validator, logger *logger.Logger) *Product {
	return &Product{products: products, validator: validator, logger: logger}
}

type productRequest struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Brand           string   `json:"brand" validate:"required,max=100"`
	ImageURL        string   `json:"imageUrl" validate:"omitempty,max=2048"`
	Description     string   `json:"description" validate:"max=4000"`
	Category        string   `json:"category" validate:"required"`
	ApplicationTime string   `json:"applicationTime" validate:"required"`
	SkinTypes       []string `json:"skinTypes"`
	Goals           []string `json:"goals"`
}

type bulkRequest struct {
	Products []productRequest `json:"products" validate:"required,min=1,max=500,dive"`
}

func (p productRequest) toModel() model.Product {
	product := model.Product{
		Name:            p.Name,
		Brand:           p.Brand,
		ImageURL:        p.ImageURL,
		Description:     p.Description,
		Category:        model.Category(p.Category),
		ApplicationTime: model.ApplicationTime(p.ApplicationTime),
		SkinTypes:       make([]model.SkinType, 0, len(p.SkinTypes)),
		Goals:           make([]model.Goal, 0, len(p.Goals)),
	}
	for _, st := range p.SkinTypes {
		product.SkinTypes = append(product.SkinTypes, model.SkinType(st))
	}
	for _, g := range p.Goals {
		product.Goals = append(product.Goals, model.Goal(g))
	}
	return product
}

func (h *Product) Create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decode(w, r, h.validator, &req, h.logger) {
		return
	}

	created, err := h.products.Create(r.Context(), req.toModel())
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.Created(w, created, h.logger)
}

// CreateBulk accepts either a bare JSON array or {"products": [...]}.
func (h *Product) CreateBulk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes*8))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	req, ok := decodeBulk(body)
	if !ok {
		response.Error(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	products := make([]model.Product, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, p.toModel())
	}

	created, err := h.products.CreateBulk(r.Context(), products)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.Created(w, created, h.logger)
}

func decodeBulk(body []byte) (bulkRequest, bool) {
	var req bulkRequest
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return req, false
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &req.Products); err != nil {
			return req, false
		}
		return req, true
	}
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return req, false
	}
	return req, true
}

func (h *Product) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, product, h.logger)
}

func (h *Product) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	summary, err := h.products.GetSummary(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, summary, h.logger)
}

func (h *Product) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	var req productRequest
	if !decode(w, r, h.validator, &req, h.logger) {
		return
	}

	product := req.toModel()
	product.ID = id
	updated, err := h.products.Update(r.Context(), product)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, updated, h.logger)
}

func (h *Product) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.NoContent(w)
}

// List pages through full products, narrowed by category, time, brand and q.
func (h *Product) List(w http.ResponseWriter, r *http.Request) {
	filter, page, err := h.catalogQuery(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	products, err := h.products.List(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, products, h.logger)
}

// ListSummaries is List in the summary projection.
func (h *Product) ListSummaries(w http.ResponseWriter, r *http.Request) {
	filter, page, err := h.catalogQuery(r)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	summaries, err := h.products.ListSummaries(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, summaries, h.logger)
}

// ByCategory serves /category/{category}.
func (h *Product) ByCategory(w http.ResponseWriter, r *http.Request) {
	category, err := model.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	page, err := pageRequest(r, defaultCatalogPageSize, false)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	products, err := h.products.List(r.Context(), model.ProductFilter{Category: &category}, page)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, products, h.logger)
}

// ByBrand serves /brand/{brand}; brand matching ignores case.
func (h *Product) ByBrand(w http.ResponseWriter, r *http.Request) {
	brand := strings.TrimSpace(chi.URLParam(r, "brand"))
	page, err := pageRequest(r, defaultCatalogPageSize, false)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	products, err := h.products.List(r.Context(), model.ProductFilter{Brand: brand}, page)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, products, h.logger)
}

// UploadImage stores the request body as the product image. The content type
// comes from the header, falling back to sniffing the first bytes.
func (h *Product) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxImageBytes)
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		response.Error(w, http.StatusBadRequest, "failed to read image", h.logger)
		return
	}
	if n == 0 {
		response.Error(w, http.StatusBadRequest, "image body is required", h.logger)
		return
	}
	head = head[:n]

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(head)
	}

	product, err := h.products.UploadImage(r.Context(), id, io.MultiReader(bytes.NewReader(head), body), contentType)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	response.OK(w, product, h.logger)
}

// Image streams the stored product image.
func (h *Product) Image(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}

	reader, err := h.products.OpenImage(r.Context(), id)
	if err != nil {
		writeError(w, r, err, h.logger)
		return
	}
	defer reader.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(reader, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		writeError(w, r, err, h.logger)
		return
	}
	head = head[:n]

	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(head); err != nil {
		return
	}
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("Product handler: image stream interrupted",
			"product_id", id,
			"error", err.Error())
	}
}

func (h *Product) catalogQuery(r *http.Request) (model.ProductFilter, model.PageRequest, error) {
	var filter model.ProductFilter

	category, err := optionalCategory(r)
	if err != nil {
		return filter, model.PageRequest{}, err
	}
	filter.Category = category

	q := r.URL.Query()
	if raw := q.Get("time"); raw != "" {
		t, err := model.ParseApplicationTime(raw)
		if err != nil {
			return filter, model.PageRequest{}, err
		}
		filter.Time = &t
	}
	filter.Brand = strings.TrimSpace(q.Get("brand"))
	filter.Query = strings.TrimSpace(q.Get("q"))

	page, err := pageRequest(r, defaultCatalogPageSize, false)
	if err != nil {
		return filter, model.PageRequest{}, err
	}
	return filter, page, nil
}
