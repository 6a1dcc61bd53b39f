package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

type HTTPHandler struct {
	cartService  *service.CartService
	orderService *service.OrderService
	slots        port.SlotRepository
}

func NewHTTPHandler(cartService *service.CartService, orderService *service.OrderService, slots port.SlotRepository) *HTTPHandler {
	return &HTTPHandler{
		cartService:  cartService,
		orderService: orderService,
		slots:        slots,
	}
}

// Register wires every route onto the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart/add", h.AddToCart)
	mux.HandleFunc("PATCH /api/cart/{product_id}", h.SetQuantity)
	mux.HandleFunc("DELETE /api/cart/{product_id}", h.RemoveFromCart)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)
	mux.HandleFunc("POST /api/login/merge", h.MergeCart)

	mux.HandleFunc("GET /api/slots", h.ListSlots)
	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{order_id}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{order_id}/cancel", h.CancelOrder)
}

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type checkoutRequest struct {
	SlotID string `json:"slot_id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type cartItemResponse struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
	StockExceeded bool            `json:"stock_exceeded,omitempty"`
}

type cartResponse struct {
	Items         []cartItemResponse `json:"items"`
	Subtotal      decimal.Decimal    `json:"subtotal"`
	TotalItems    int                `json:"total_items"`
	DistinctItems int                `json:"distinct_items"`
}

// owner builds the cart owner for the request: user id when authenticated,
// session id otherwise. Identity issuance happens upstream; this layer only
// reads the result.
func owner(r *http.Request) (domain.CartOwner, bool) {
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return domain.CartOwner{UserID: userID}, true
	}
	if sessionID := r.Header.Get("X-Session-ID"); sessionID != "" {
		return domain.CartOwner{SessionID: sessionID}, true
	}
	return domain.CartOwner{}, false
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "missing session or user identity"})
		return
	}

	h.writeCart(w, r, o)
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "missing session or user identity"})
		return
	}

	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}
	if req.ProductID == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "product_id is required"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	if err := h.cartService.Add(r.Context(), o, req.ProductID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	h.writeCart(w, r, o)
}

func (h *HTTPHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "missing session or user identity"})
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}

	if err := h.cartService.SetQuantity(r.Context(), o, r.PathValue("product_id"), req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	h.writeCart(w, r, o)
}

func (h *HTTPHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "missing session or user identity"})
		return
	}

	if err := h.cartService.Remove(r.Context(), o, r.PathValue("product_id")); err != nil {
		writeError(w, err)
		return
	}
	h.writeCart(w, r, o)
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	o, ok := owner(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "missing session or user identity"})
		return
	}

	if err := h.cartService.Clear(r.Context(), o); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "cart cleared"})
}

// MergeCart is called by the auth flow right after login to fold the
// anonymous session cart into the user's durable cart.
func (h *HTTPHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	sessionID := r.Header.Get("X-Session-ID")
	if userID == "" || sessionID == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "both session and user identity are required"})
		return
	}

	if err := h.cartService.Migrate(r.Context(), sessionID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "cart merged"})
}

func (h *HTTPHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.slots.ListAvailable(r.Context(), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "checkout requires a signed-in user"})
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return
	}
	if req.SlotID == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "slot_id is required"})
		return
	}

	order, err := h.orderService.Checkout(r.Context(), userID, req.SlotID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "sign in to view orders"})
		return
	}

	orders, err := h.orderService.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "sign in to view orders"})
		return
	}

	order, err := h.orderService.Get(r.Context(), userID, r.PathValue("order_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "sign in to cancel orders"})
		return
	}

	if err := h.orderService.Cancel(r.Context(), userID, r.PathValue("order_id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "order cancelled"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeCart(w http.ResponseWriter, r *http.Request, o domain.CartOwner) {
	items, err := h.cartService.Items(r.Context(), o)
	if err != nil {
		writeError(w, err)
		return
	}

	totals := domain.TotalsOf(items)
	resp := cartResponse{
		Items:         make([]cartItemResponse, 0, len(items)),
		Subtotal:      totals.Subtotal,
		TotalItems:    totals.TotalItems,
		DistinctItems: totals.DistinctItems,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, cartItemResponse{
			ProductID:     it.ProductID,
			ProductName:   it.ProductName,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			LineTotal:     it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))),
			StockExceeded: it.StockExceeded,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Business
// rejections carry their own message; anything unexpected is a generic 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrSlotNotFound):
		writeJSON(w, http.StatusNotFound, messageResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrProductInactive),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrEmptyCart):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrSlotFull),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrCancelWindowClosed):
		writeJSON(w, http.StatusConflict, messageResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, messageResponse{Message: "forbidden"})
	default:
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
