package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/mathieu-neron/packprice/packprice-go/internal/middleware"
	"github.com/mathieu-neron/packprice/packprice-go/internal/model"
	"github.com/mathieu-neron/packprice/packprice-go/internal/service"
)

type PriceHandler struct {
	svc *service.PriceService
}

func NewPriceHandler(svc *service.PriceService) *PriceHandler {
	return &PriceHandler{svc: svc}
}

// Submit handles POST /api/prices
func (h *PriceHandler) Submit(c fiber.Ctx) error {
	var req model.PriceSubmitRequest
	if err := c.Bind().JSON(&req); err != nil {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_BODY", "Invalid request body")
	}

	resp, err := h.svc.Submit(c.Context(), req, middleware.ClientIP(c))
	if err != nil {
		return serviceError(c, err, "Item or store not found", "Failed to submit price")
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// List handles GET /api/items/:itemId/prices?base=&radius=
func (h *PriceHandler) List(c fiber.Ctx) error {
	itemID, errMsg := middleware.ParseID(c.Params("itemId"), "itemId")
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	baseID, errMsg := middleware.ParseOptionalID(c.Query("base"), "base")
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	radius, errMsg := middleware.ParseRadius(c.Query("radius"))
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	resp, err := h.svc.ListRanked(c.Context(), itemID, baseID, radius)
	if err != nil {
		return serviceError(c, err, "Base not found", "Failed to rank prices")
	}

	return c.JSON(resp)
}

// Best handles GET /api/items/:itemId/prices/best?limit=
func (h *PriceHandler) Best(c fiber.Ctx) error {
	itemID, errMsg := middleware.ParseID(c.Params("itemId"), "itemId")
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	limit, errMsg := middleware.ParseLimit(c.Query("limit"), service.DefaultBestPricesLimit)
	if errMsg != "" {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", errMsg)
	}

	prices, err := h.svc.BestPrices(c.Context(), itemID, limit)
	if err != nil {
		return serviceError(c, err, "Item not found", "Failed to fetch best prices")
	}

	return c.JSON(fiber.Map{
		"itemId": itemID,
		"prices": prices,
	})
}
