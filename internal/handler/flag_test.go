package handler

import (
	"context"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagHandler_Flag(t *testing.T) {
	env := newTestEnv(t)
	seedPrices(env.store)

	resp, body := env.do(t, fiber.MethodPost, "/api/prices/2/flag", `{"reason":"price from last year"}`, "203.0.113.9")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1.0, body["flaggedCount"])
	assert.Equal(t, false, body["ipBlocked"])

	// Body is optional
	resp, body = env.do(t, fiber.MethodPost, "/api/prices/2/flag", "", "203.0.113.9")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, body["flaggedCount"])

	// Third flag reaches the threshold and blocks the submitter
	resp, body = env.do(t, fiber.MethodPost, "/api/prices/2/flag", `{"reason":"`+strings.Repeat("x", 400)+`"}`, "203.0.113.9")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 3.0, body["flaggedCount"])
	assert.Equal(t, true, body["ipBlocked"])

	_, found, err := env.cache.Get(context.Background(), "blocked_ip:198.51.100.7")
	require.NoError(t, err)
	assert.True(t, found)

	// The blocked submitter is now rejected by the gate
	resp, respBody := env.do(t, fiber.MethodPost, "/api/prices",
		`{"itemId":1,"storeId":10,"price":"4.50"}`, "198.51.100.7")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "SUBMISSION_BLOCKED", errorCode(respBody))
}

func TestFlagHandler_NoSubmitterIP(t *testing.T) {
	env := newTestEnv(t)
	seedPrices(env.store)

	// Price 1 has no stored ip, so reaching the threshold blocks nobody
	for i := 1; i <= 3; i++ {
		resp, body := env.do(t, fiber.MethodPost, "/api/prices/1/flag", "", "203.0.113.9")
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(i), body["flaggedCount"])
		assert.Equal(t, false, body["ipBlocked"])
	}
}

func TestFlagHandler_Errors(t *testing.T) {
	env := newTestEnv(t)
	seedPrices(env.store)

	resp, body := env.do(t, fiber.MethodPost, "/api/prices/999/flag", "", "203.0.113.9")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	resp, body = env.do(t, fiber.MethodPost, "/api/prices/-1/flag", "", "203.0.113.9")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_FIELD", errorCode(body))

	resp, body = env.do(t, fiber.MethodPost, "/api/prices/1/flag", `{"reason":`, "203.0.113.9")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_BODY", errorCode(body))
}
