package driverdir

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mimisupply/delivery/internal/types/driver"
	"github.com/mimisupply/delivery/internal/util/geo"
)

// Registry is what the driver-app endpoints need to push into the directory.
type Registry interface {
	Register(ctx context.Context, dr driver.Driver) error
	UpdateLocation(ctx context.Context, driverID string, loc geo.Point) error
	SetOnline(ctx context.Context, driverID string, online bool) error
	SetAvailability(ctx context.Context, driverID string, available bool) error
}

type Handler struct {
	reg Registry
}

func NewHandler(reg Registry) *Handler {
	return &Handler{reg: reg}
}

type registerReq struct {
	DriverID            string  `json:"driver_id"`
	Lat                 float64 `json:"lat"`
	Lon                 float64 `json:"lon"`
	Online              bool    `json:"online"`
	Available           bool    `json:"available"`
	Rating              float64 `json:"rating"`
	CompletedDeliveries int     `json:"completed_deliveries"`
	VehicleType         string  `json:"vehicle_type"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.DriverID == "" || req.Rating < 0 || req.Rating > 5 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	dr := driver.Driver{
		ID:                  req.DriverID,
		Location:            geo.Point{Lat: req.Lat, Lon: req.Lon},
		Online:              req.Online,
		Available:           req.Available,
		Rating:              req.Rating,
		CompletedDeliveries: req.CompletedDeliveries,
		VehicleType:         driver.VehicleType(req.VehicleType),
	}
	if err := h.reg.Register(r.Context(), dr); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type locationReq struct {
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.DriverID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := h.reg.UpdateLocation(r.Context(), req.DriverID, geo.Point{Lat: req.Lat, Lon: req.Lon}); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type availabilityReq struct {
	DriverID  string `json:"driver_id"`
	Online    *bool  `json:"online,omitempty"`
	Available *bool  `json:"available,omitempty"`
}

func (h *Handler) UpdateAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.DriverID == "" || (req.Online == nil && req.Available == nil) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Online != nil {
		if err := h.reg.SetOnline(r.Context(), req.DriverID, *req.Online); err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}
	if req.Available != nil {
		if err := h.reg.SetAvailability(r.Context(), req.DriverID, *req.Available); err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
