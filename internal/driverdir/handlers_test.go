package driverdir

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mimisupply/delivery/internal/types/driver"
	"github.com/mimisupply/delivery/internal/util/geo"
	"github.com/stretchr/testify/assert"
)

type stubRegistry struct {
	registered  []driver.Driver
	locations   map[string]geo.Point
	online      map[string]bool
	available   map[string]bool
	errOnUpdate error
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		locations: make(map[string]geo.Point),
		online:    make(map[string]bool),
		available: make(map[string]bool),
	}
}

func (s *stubRegistry) Register(ctx context.Context, dr driver.Driver) error {
	s.registered = append(s.registered, dr)
	return nil
}

func (s *stubRegistry) UpdateLocation(ctx context.Context, driverID string, loc geo.Point) error {
	if s.errOnUpdate != nil {
		return s.errOnUpdate
	}
	s.locations[driverID] = loc
	return nil
}

func (s *stubRegistry) SetOnline(ctx context.Context, driverID string, online bool) error {
	s.online[driverID] = online
	return nil
}

func (s *stubRegistry) SetAvailability(ctx context.Context, driverID string, available bool) error {
	s.available[driverID] = available
	return nil
}

func TestRegisterHandler(t *testing.T) {
	reg := newStubRegistry()
	h := NewHandler(reg)

	body := `{"driver_id":"d-1","lat":37.77,"lon":-122.42,"online":true,"available":true,"rating":4.8,"vehicle_type":"car"}`
	req := httptest.NewRequest(http.MethodPost, "/api/drivers/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, reg.registered, 1)
	assert.Equal(t, driver.VehicleCar, reg.registered[0].VehicleType)
}

func TestRegisterHandlerRejectsBadRating(t *testing.T) {
	h := NewHandler(newStubRegistry())

	body := `{"driver_id":"d-1","rating":7.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/drivers/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateLocationHandler(t *testing.T) {
	reg := newStubRegistry()
	h := NewHandler(reg)

	body := `{"driver_id":"d-1","lat":37.78,"lon":-122.41}`
	req := httptest.NewRequest(http.MethodPost, "/api/drivers/location", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.UpdateLocation(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, geo.Point{Lat: 37.78, Lon: -122.41}, reg.locations["d-1"])
}

func TestUpdateAvailabilityHandler(t *testing.T) {
	reg := newStubRegistry()
	h := NewHandler(reg)

	body := `{"driver_id":"d-1","online":true,"available":false}`
	req := httptest.NewRequest(http.MethodPost, "/api/drivers/availability", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.UpdateAvailability(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reg.online["d-1"])
	assert.False(t, reg.available["d-1"])
}

func TestUpdateAvailabilityHandlerRequiresAField(t *testing.T) {
	h := NewHandler(newStubRegistry())

	req := httptest.NewRequest(http.MethodPost, "/api/drivers/availability", strings.NewReader(`{"driver_id":"d-1"}`))
	w := httptest.NewRecorder()

	h.UpdateAvailability(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
