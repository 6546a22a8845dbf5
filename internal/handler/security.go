package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/packprice/packprice-go/internal/middleware"
	"github.com/mathieu-neron/packprice/packprice-go/internal/service"
	"github.com/mathieu-neron/packprice/packprice-go/pkg/ipaddr"
)

type SecurityHandler struct {
	gate *service.SubmissionGate
}

func NewSecurityHandler(gate *service.SubmissionGate) *SecurityHandler {
	return &SecurityHandler{gate: gate}
}

// IPReport handles GET /api/security/ip/:ip. The response carries the
// salted hash of the address, never the address itself.
func (h *SecurityHandler) IPReport(c fiber.Ctx) error {
	ip, ok := ipaddr.Normalize(c.Params("ip"))
	if !ok {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", "ip must be a valid IPv4 or IPv6 address")
	}

	report, err := h.gate.Report(c.Context(), ip)
	if err != nil {
		return serviceError(c, err, "IP not found", "Failed to assess IP")
	}

	return c.JSON(report)
}
