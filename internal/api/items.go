package api

import (
	"database/sql"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pantrylog/pantrylog/internal/imaging"
	"github.com/pantrylog/pantrylog/internal/lifecycle"
	"github.com/pantrylog/pantrylog/internal/model"
	"github.com/pantrylog/pantrylog/internal/store"
)

// ItemsHandler handles item endpoints.
type ItemsHandler struct {
	DB  *sql.DB
	Svc *lifecycle.Service
	Log *zap.Logger
}

// Item fields arrive as free text the way a sheet input would send them;
// days-left and quantity get the same parse-and-clamp treatment as a typed-in
// value.
type createItemRequest struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Store      string `json:"store"`
	Storage    string `json:"storage"`
	AcquiredAt string `json:"acquired_at"`
	DaysLeft   string `json:"days_left"`
	QtyType    string `json:"qty_type"`
	QtyUnit    string `json:"qty_unit"`
	QtyValue   string `json:"qty_value"`
}

type updateItemRequest struct {
	Name           string `json:"name"`
	Label          string `json:"label"`
	Store          string `json:"store"`
	Storage        string `json:"storage"`
	AcquiredAt     string `json:"acquired_at"`
	DaysLeft       string `json:"days_left"`
	DaysLeftEdited bool   `json:"days_left_edited"`
	QtyType        string `json:"qty_type"`
	QtyUnit        string `json:"qty_unit"`
	QtyValue       string `json:"qty_value"`
}

func parseQuantity(qtyType, qtyUnit, qtyValue string) (*store.QuantityInput, error) {
	v, err := model.ParseQuantity(qtyValue)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}

	unit := qtyUnit
	if unit == "" {
		unit = "ea"
	}
	return &store.QuantityInput{
		Type:  model.ClampQtyType(model.QtyType(qtyType)),
		Unit:  unit,
		Value: *v,
	}, nil
}

// ownedItem loads the item and enforces ownership. Items of other users are
// indistinguishable from missing ones.
func (h *ItemsHandler) ownedItem(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}

	item, err := store.GetItem(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return nil, false
	}
	if item == nil || item.UserID != claims.UserID {
		jsonError(w, http.StatusNotFound, "item not found")
		return nil, false
	}
	return item, true
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	q := r.URL.Query()

	filter := store.ListFilter{
		UserID: claims.UserID,
		Query:  q.Get("q"),
		Sort:   q.Get("sort"),
	}
	for _, s := range splitCSV(q.Get("storage")) {
		filter.Storage = append(filter.Storage, model.Storage(s))
	}
	for _, s := range splitCSV(q.Get("stage")) {
		filter.Stage = append(filter.Stage, model.Stage(s))
	}
	for _, s := range splitCSV(q.Get("status")) {
		filter.Status = append(filter.Status, model.Status(s))
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(q.Get("page_size")); err == nil {
		filter.PageSize = size
	}

	res, err := store.ListItems(r.Context(), h.DB, filter)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if res.Items == nil {
		res.Items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, res)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	days, err := model.ParseDaysLeft(req.DaysLeft)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "days left must be a number")
		return
	}
	qty, err := parseQuantity(req.QtyType, req.QtyUnit, req.QtyValue)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "quantity must be a number")
		return
	}

	item, err := h.Svc.Create(r.Context(), lifecycle.CreateInput{
		UserID:     claims.UserID,
		Name:       req.Name,
		Label:      req.Label,
		Store:      req.Store,
		Storage:    model.Storage(req.Storage),
		AcquiredAt: req.AcquiredAt,
		DaysLeft:   days,
		Quantity:   qty,
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	jsonResponse(w, http.StatusCreated, item)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	days, err := model.ParseDaysLeft(req.DaysLeft)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "days left must be a number")
		return
	}
	qty, err := parseQuantity(req.QtyType, req.QtyUnit, req.QtyValue)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "quantity must be a number")
		return
	}

	updated, err := h.Svc.SaveEdit(r.Context(), item.ID, lifecycle.EditInput{
		Name:           req.Name,
		Label:          req.Label,
		Store:          req.Store,
		Storage:        model.Storage(req.Storage),
		AcquiredAt:     req.AcquiredAt,
		DaysLeft:       days,
		DaysLeftEdited: req.DaysLeftEdited,
		Quantity:       qty,
	})
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	if updated == nil {
		// A zero-quantity write removed the item mid-edit.
		jsonResponse(w, http.StatusOK, map[string]bool{"deleted": true})
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	if err := h.Svc.Delete(r.Context(), item.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/items/{id}/image.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	file, ok := photoFromRequest(w, r)
	if !ok {
		return
	}
	defer file.Close()

	updated, err := h.Svc.AttachPhoto(r.Context(), item.ID, file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// GetImage handles GET /api/items/{id}/image.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	data, mime, err := store.GetItemImage(r.Context(), h.DB, item.ID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get photo")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Analyze handles POST /api/items/{id}/analyze: re-runs photo analysis on an
// existing item.
func (h *ItemsHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	item, ok := h.ownedItem(w, r)
	if !ok {
		return
	}

	updated, err := h.Svc.AnalyzeExisting(r.Context(), item.ID)
	if errors.Is(err, lifecycle.ErrAnalyzerDisabled) {
		jsonError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		h.Log.Error("photo analysis failed", zap.String("item_id", item.ID), zap.Error(err))
		jsonError(w, http.StatusBadGateway, "photo analysis failed")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// CreateFromPhoto handles POST /api/items/analyze: a photo upload becomes a
// new item with analyzer-filled fields.
func (h *ItemsHandler) CreateFromPhoto(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	file, ok := photoFromRequest(w, r)
	if !ok {
		return
	}
	defer file.Close()

	processed, err := imaging.Process(file)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.Svc.CreateFromAnalysis(r.Context(), claims.UserID, processed.Data, processed.MIME)
	if errors.Is(err, lifecycle.ErrAnalyzerDisabled) {
		jsonError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		h.Log.Error("photo analysis failed", zap.Error(err))
		jsonError(w, http.StatusBadGateway, "photo analysis failed")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// photoFromRequest extracts the uploaded photo from a multipart form.
func photoFromRequest(w http.ResponseWriter, r *http.Request) (multipart.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes)

	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return nil, false
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return nil, false
	}
	return file, true
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
