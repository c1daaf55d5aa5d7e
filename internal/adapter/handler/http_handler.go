package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quickcart/stock-ledger/internal/core/domain"
	"github.com/quickcart/stock-ledger/internal/core/service"
)

// HTTPHandler is the thin JSON surface over the stock operations, consumed
// by the order, admin and import services.
type HTTPHandler struct {
	stock *service.StockService
}

func NewHTTPHandler(stock *service.StockService) *HTTPHandler {
	return &HTTPHandler{stock: stock}
}

func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)
	r.Route("/api/stock", func(r chi.Router) {
		r.Get("/low-stock", h.LowStock)
		r.Get("/out-of-stock", h.OutOfStock)
		r.Get("/movements", h.RecentMovements)
		r.Route("/{productID}", func(r chi.Router) {
			r.Get("/", h.Summary)
			r.Get("/movements", h.ProductMovements)
			r.Post("/add", h.Add)
			r.Post("/remove", h.Remove)
			r.Post("/adjust", h.Adjust)
			r.Post("/reserve", h.Reserve)
			r.Post("/release", h.Release)
			r.Post("/fulfill", h.Fulfill)
			r.Post("/finalize", h.Finalize)
		})
	})
}

type mutateRequest struct {
	Quantity    int    `json:"quantity"`
	NewQuantity int    `json:"new_quantity"`
	Reference   string `json:"reference"`
	PerformedBy string `json:"performed_by"`
	Notes       string `json:"notes"`
	UserID      string `json:"user_id"`
}

type ledgerResponse struct {
	ProductID         string    `json:"product_id"`
	SKU               string    `json:"sku"`
	QuantityAvailable int       `json:"quantity_available"`
	QuantityReserved  int       `json:"quantity_reserved"`
	ReorderLevel      int       `json:"reorder_level"`
	LastUpdated       time.Time `json:"last_updated"`
}

type movementResponse struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	Type        string    `json:"type"`
	Quantity    int       `json:"quantity"`
	Reference   string    `json:"reference"`
	PerformedBy string    `json:"performed_by"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) Add(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMutate(w, r)
	if !ok {
		return
	}
	led, err := h.stock.AddStock(r.Context(), chi.URLParam(r, "productID"),
		req.Quantity, req.Reference, parseActor(req.PerformedBy), req.Notes)
	respondLedger(w, led, err)
}

func (h *HTTPHandler) Remove(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMutate(w, r)
	if !ok {
		return
	}
	led, err := h.stock.RemoveStock(r.Context(), chi.URLParam(r, "productID"),
		req.Quantity, req.Reference, parseActor(req.PerformedBy), req.Notes)
	respondLedger(w, led, err)
}

func (h *HTTPHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMutate(w, r)
	if !ok {
		return
	}
	led, err := h.stock.AdjustStock(r.Context(), chi.URLParam(r, "productID"),
		req.NewQuantity, req.Reference, parseActor(req.PerformedBy), req.Notes)
	respondLedger(w, led, err)
}

func (h *HTTPHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMutate(w, r)
	if !ok {
		return
	}
	led, err := h.stock.ReserveStock(r.Context(), chi.URLParam(r, "productID"),
		req.Quantity, req.Reference, req.UserID)
	respondLedger(w, led, err)
}

func (h *HTTPHandler) Release(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMutate(w, r)
	if !ok {
		return
	}
	led, err := h.stock.ReleaseReservedStock(r.Context(), chi.URLParam(r, "productID"),
		req.Quantity, req.Reference)
	respondLedger(w, led, err)
}

func (h *HTTPHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMutate(w, r)
	if !ok {
		return
	}
	led, err := h.stock.FulfillReservedStock(r.Context(), chi.URLParam(r, "productID"),
		req.Quantity, req.Reference)
	respondLedger(w, led, err)
}

func (h *HTTPHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeMutate(w, r)
	if !ok {
		return
	}
	led, err := h.stock.FinalizeStock(r.Context(), chi.URLParam(r, "productID"),
		req.Quantity, req.Reference)
	respondLedger(w, led, err)
}

func (h *HTTPHandler) Summary(w http.ResponseWriter, r *http.Request) {
	led, err := h.stock.GetInventorySummary(r.Context(), chi.URLParam(r, "productID"))
	respondLedger(w, led, err)
}

func (h *HTTPHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, _ := strconv.Atoi(r.URL.Query().Get("threshold"))
	leds, err := h.stock.GetLowStockItems(r.Context(), threshold)
	respondLedgers(w, leds, err)
}

func (h *HTTPHandler) OutOfStock(w http.ResponseWriter, r *http.Request) {
	leds, err := h.stock.GetOutOfStockItems(r.Context())
	respondLedgers(w, leds, err)
}

func (h *HTTPHandler) ProductMovements(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	mvs, err := h.stock.ListMovementsByProduct(r.Context(), chi.URLParam(r, "productID"), limit, offset)
	respondMovements(w, mvs, err)
}

func (h *HTTPHandler) RecentMovements(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	if typ := r.URL.Query().Get("type"); typ != "" {
		mvs, err := h.stock.ListMovementsByType(r.Context(), domain.MovementType(typ), limit, offset)
		respondMovements(w, mvs, err)
		return
	}
	mvs, err := h.stock.ListRecentMovements(r.Context(), limit, offset)
	respondMovements(w, mvs, err)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeMutate(w http.ResponseWriter, r *http.Request) (mutateRequest, bool) {
	var req mutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return req, false
	}
	return req, true
}

func parseActor(performedBy string) domain.Actor {
	switch performedBy {
	case "":
		return domain.UnknownActor()
	case "system":
		return domain.SystemActor()
	default:
		return domain.UserActor(performedBy)
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func respondLedger(w http.ResponseWriter, led domain.Ledger, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerResponse(led))
}

func respondLedgers(w http.ResponseWriter, leds []domain.Ledger, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ledgerResponse, 0, len(leds))
	for _, led := range leds {
		out = append(out, toLedgerResponse(led))
	}
	writeJSON(w, http.StatusOK, out)
}

func respondMovements(w http.ResponseWriter, mvs []domain.Movement, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(mvs))
	for _, mv := range mvs {
		out = append(out, movementResponse{
			ID:          mv.ID,
			ProductID:   mv.ProductID,
			Type:        string(mv.Type),
			Quantity:    mv.Quantity,
			Reference:   mv.Reference,
			PerformedBy: mv.PerformedBy.String(),
			Notes:       mv.Notes,
			CreatedAt:   mv.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func toLedgerResponse(led domain.Ledger) ledgerResponse {
	return ledgerResponse{
		ProductID:         led.ProductID,
		SKU:               led.SKU,
		QuantityAvailable: led.QuantityAvailable,
		QuantityReserved:  led.QuantityReserved,
		ReorderLevel:      led.ReorderLevel,
		LastUpdated:       led.LastUpdated,
	}
}

func writeError(w http.ResponseWriter, err error) {
	var insufficientStock *domain.InsufficientStockError
	var insufficientReserved *domain.InsufficientReservedStockError

	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = "product not found"
	case errors.Is(err, domain.ErrLockConflict):
		status = http.StatusConflict
		message = "a reservation for this product is already in flight"
	case errors.As(err, &insufficientStock):
		status = http.StatusConflict
		message = insufficientStock.Error()
	case errors.As(err, &insufficientReserved):
		status = http.StatusConflict
		message = insufficientReserved.Error()
	}

	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
