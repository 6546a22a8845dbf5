package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/packprice/packprice-go/internal/middleware"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
	"github.com/mathieu-neron/packprice/packprice-go/internal/service"
)

type FlagHandler struct {
	svc *service.FlagService
}

func NewFlagHandler(svc *service.FlagService) *FlagHandler {
	return &FlagHandler{svc: svc}
}

// Flag handles POST /api/prices/:id/flag. The body is optional.
func (h *FlagHandler) Flag(c fiber.Ctx) error {
	priceID, errMsg := middleware.ParseID(c.Params("id"), "id")
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	var req model.FlagRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		}
	}

	result, err := h.svc.FlagPriceAsSuspicious(c.Context(), priceID, middleware.ValidateReason(req.Reason))
	if err != nil {
		return serviceError(c, err, "Price not found", "Failed to flag price")
	}
	if result.Outcome == model.FlagOutcomeNotFound {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Price not found")
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"priceId":      result.PriceID,
		"flaggedCount": result.FlaggedCount,
		"ipBlocked":    result.IPBlocked,
	})
}
