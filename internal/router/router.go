package router

import (
	"github.com/mimisupply/delivery/internal/account"
	"github.com/mimisupply/delivery/internal/driverdir"
	"github.com/mimisupply/delivery/internal/logger"
	"github.com/mimisupply/delivery/internal/middleware"
	"github.com/mimisupply/delivery/internal/order"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(
	accountH *account.Handler,
	orderH *order.Handler,
	driverH *driverdir.Handler,
	jwtSecret []byte,
	accountRepo account.AccountRepository,
) chi.Router {
	r := chi.NewRouter()

	r.Use(logger.WithLogging)
	r.Use(chiMiddleware.Recoverer)

	r.Use(middleware.GzipHandler)

	r.Route("/api/accounts", func(r chi.Router) {
		r.Post("/register", accountH.Register)
		r.Post("/login", accountH.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware(jwtSecret, accountRepo))

		r.Post("/api/orders", orderH.CreateOrder)
		r.Get("/api/orders", orderH.ListOrders)
		r.Post("/api/orders/quote", orderH.Quote)
		r.Get("/api/orders/{id}", orderH.GetOrder)
		r.Post("/api/orders/{id}/status", orderH.Transition)
		r.Post("/api/orders/{id}/cancel", orderH.Cancel)

		r.Post("/api/drivers/register", driverH.Register)
		r.Post("/api/drivers/location", driverH.UpdateLocation)
		r.Post("/api/drivers/availability", driverH.UpdateAvailability)
	})

	return r
}
