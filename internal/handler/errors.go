package handler

import (
	"errors"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/mathieu-neron/packprice/packprice-go/internal/middleware"
	"github.com/mathieu-neron/packprice/packprice-go/internal/repository"
	"github.com/mathieu-neron/packprice/packprice-go/internal/service"
)

// serviceError maps a service error onto the API error envelope. notFound
// is the message used for repository.ErrNotFound, failed the one used for
// unexpected errors.
func serviceError(c fiber.Ctx, err error, notFound, failed string) error {
	var validation *service.ValidationError
	if errors.As(err, &validation) {
		return middleware.ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", validation.Message)
	}

	var blocked *service.BlockedError
	if errors.As(err, &blocked) {
		if blocked.RateLimited() {
			retryAfter := int(math.Ceil(blocked.Decision.RetryAfter.Seconds()))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{
					"code":       "RATE_LIMITED",
					"message":    blocked.Decision.Reason,
					"retryAfter": retryAfter,
				},
			})
		}
		return middleware.ErrorResponse(c, fiber.StatusForbidden, "SUBMISSION_BLOCKED", blocked.Decision.Reason)
	}

	if errors.Is(err, repository.ErrNotFound) {
		return middleware.ErrorResponse(c, fiber.StatusNotFound, "NOT_FOUND", notFound)
	}

	log.Error().Err(err).Str("path", middleware.SanitizePath(c.Path())).Msg("request failed")
	return middleware.ErrorResponse(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", failed)
}
