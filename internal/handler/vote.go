package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/packprice/packprice-go/internal/middleware"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
	"github.com/mathieu-neron/packprice/packprice-go/internal/service"
)

type VoteHandler struct {
	svc *service.VoteService
}

func NewVoteHandler(svc *service.VoteService) *VoteHandler {
	return &VoteHandler{svc: svc}
}

// Cast handles POST /api/prices/:id/votes
func (h *VoteHandler) Cast(c fiber.Ctx) error {
	priceID, errMsg := middleware.ParseID(c.Params("id"), "id")
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	var req model.VoteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	resp, err := h.svc.Cast(c.Context(), priceID, req, middleware.ClientIP(c))
	if err != nil {
		return serviceError(c, err, "Price not found", "Failed to submit vote")
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}
