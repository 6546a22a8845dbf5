package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/packprice/packprice-go/internal/middleware"
	"github.com/mathieu-neron/packprice/packprice-go/internal/service"
)

type StatsHandler struct {
	svc *service.StatsService
}

func NewStatsHandler(svc *service.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// ItemStats handles GET /api/items/:itemId/stats
func (h *StatsHandler) ItemStats(c fiber.Ctx) error {
	itemID, errMsg := middleware.ParseID(c.Params("itemId"), "itemId")
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	stats, err := h.svc.ItemStats(c.Context(), itemID)
	if err != nil {
		return serviceError(c, err, "Item not found", "Failed to fetch statistics")
	}

	return c.JSON(stats)
}
