package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mimisupply/delivery/internal/middleware"
	"github.com/mimisupply/delivery/internal/payment"
	"github.com/mimisupply/delivery/internal/types/order"
	typespricing "github.com/mimisupply/delivery/internal/types/pricing"
	"github.com/mimisupply/delivery/internal/util/geo"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createOrderReq struct {
	PartnerID          string        `json:"partner_id"`
	PartnerLocation    geo.Point     `json:"partner_location"`
	MinimumOrderAmount int64         `json:"minimum_order_amount"`
	Items              []order.Item  `json:"items"`
	DeliveryAddress    order.Address `json:"delivery_address"`
	PaymentMethod      string        `json:"payment_method"`
	Tip                int64         `json:"tip"`
	PreferredVehicle   string        `json:"preferred_vehicle"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidItem),
		errors.Is(err, ErrIncompleteAddress),
		errors.Is(err, ErrInvalidTip),
		errors.Is(err, ErrInvalidTotal):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrBelowMinimumOrder):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrCancellationNotAllowed),
		errors.Is(err, order.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, order.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		if pe, ok := payment.AsError(err); ok {
			switch pe.Kind {
			case payment.KindDeclined:
				http.Error(w, pe.Error(), http.StatusPaymentRequired)
			case payment.KindInvalidAmount:
				http.Error(w, pe.Error(), http.StatusUnprocessableEntity)
			default:
				http.Error(w, pe.Error(), http.StatusBadGateway)
			}
			return
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.CustomerIDFromContext(r.Context())

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.PartnerID == "" {
		http.Error(w, "partner_id is required", http.StatusBadRequest)
		return
	}

	o, err := h.svc.CreateOrder(r.Context(), CreateOrderRequest{
		CustomerID:         customerID,
		PartnerID:          req.PartnerID,
		PartnerLocation:    req.PartnerLocation,
		MinimumOrderAmount: req.MinimumOrderAmount,
		Items:              req.Items,
		DeliveryAddress:    req.DeliveryAddress,
		PaymentMethod:      req.PaymentMethod,
		Tip:                req.Tip,
		PreferredVehicle:   req.PreferredVehicle,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

type quoteResp struct {
	Breakdown    typespricing.Breakdown `json:"breakdown"`
	SuggestedTip int64                  `json:"suggested_tip"`
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	b, tip, err := h.svc.Quote(req.Items, req.PartnerLocation, req.DeliveryAddress, req.Tip)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResp{Breakdown: b, SuggestedTip: tip})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.CustomerIDFromContext(r.Context())
	o, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if o.CustomerID != customerID {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	customerID := middleware.CustomerIDFromContext(r.Context())
	orders, err := h.svc.ListOrders(r.Context(), customerID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type transitionReq struct {
	Status order.Status `json:"status"`
}

func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	o, err := h.svc.Transition(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	res, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
