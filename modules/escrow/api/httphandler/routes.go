package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/escrow/v1")

	r.Get("/info", h.GetInfo)
	r.Get("/deals", h.GetDeals)
	r.Get("/deals/:orderId", h.GetDeal)
	r.Get("/deals/:orderId/events", h.GetDealEvents)
	r.Get("/deals/:orderId/activity", h.GetDealActivity)
	r.Get("/disputes", h.GetDisputes)
	r.Post("/deals/:orderId/verify", h.VerifyTask)
	r.Post("/deals/:orderId/claim", h.Claim)
	r.Post("/deals/:orderId/resolve", h.ResolveDispute)
	return nil
}
