package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/gofiber/fiber/v3"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"valid", "42", 42, false},
		{"trims whitespace", " 7 ", 7, false},
		{"empty", "", 0, true},
		{"zero", "0", 0, true},
		{"negative", "-3", 0, true},
		{"not a number", "abc", 0, true},
		{"sql injection", "1; DROP TABLE prices", 0, true},
		{"overflow", "99999999999999999999", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := ParseID(tt.input, "id")
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseOptionalID(t *testing.T) {
	if id, errMsg := ParseOptionalID("", "base"); id != nil || errMsg != "" {
		t.Errorf("empty = %v, %q; want nil, no error", id, errMsg)
	}
	if id, errMsg := ParseOptionalID("3", "base"); id == nil || *id != 3 || errMsg != "" {
		t.Errorf("\"3\" = %v, %q; want 3", id, errMsg)
	}
	if _, errMsg := ParseOptionalID("x", "base"); errMsg == "" {
		t.Error("expected error for non-numeric base")
	}
}

func TestParseRadius(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"", 0, false},
		{"25", 25, false},
		{"12.5", 12.5, false},
		{"0", 0, true},
		{"-5", 0, true},
		{"501", 0, true},
		{"far", 0, true},
	}
	for _, tt := range tests {
		got, errMsg := ParseRadius(tt.input)
		if (errMsg != "") != tt.wantErr || got != tt.want {
			t.Errorf("ParseRadius(%q) = %v, %q; want %v, err=%v", tt.input, got, errMsg, tt.want, tt.wantErr)
		}
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"", 3, false},
		{"10", 10, false},
		{"1000", 50, false},
		{"0", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		got, errMsg := ParseLimit(tt.input, 3)
		if (errMsg != "") != tt.wantErr || got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, %q; want %d, err=%v", tt.input, got, errMsg, tt.want, tt.wantErr)
		}
	}
}

func TestValidateReason(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"trims whitespace", "  wrong price  ", "wrong price"},
		{"exactly max", strings.Repeat("a", MaxReasonLen), strings.Repeat("a", MaxReasonLen)},
		{"truncated", strings.Repeat("b", 300), strings.Repeat("b", MaxReasonLen)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateReason(tt.input); got != tt.want {
				t.Errorf("got len %d, want len %d", len(got), len(tt.want))
			}
		})
	}

	// Multi-byte runes are never split
	got := ValidateReason(strings.Repeat("é", 200))
	if !utf8.ValidString(got) || len(got) > MaxReasonLen {
		t.Errorf("truncated reason invalid: len %d", len(got))
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		want      string
	}{
		{"forwarded single", "203.0.113.5", "203.0.113.5"},
		{"forwarded chain takes first", "203.0.113.5, 10.0.0.1", "203.0.113.5"},
		{"forwarded garbage", "unknown", ""},
		{"forwarded mapped ipv6", "::ffff:198.51.100.2", "198.51.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c fiber.Ctx) error { return c.SendString(ClientIP(c)) })

			req := httptest.NewRequest(fiber.MethodGet, "/", nil)
			req.Header.Set("X-Forwarded-For", tt.forwarded)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.want {
				t.Errorf("ClientIP() = %q, want %q", body, tt.want)
			}
		})
	}
}

func TestClientIP_TrustedProxies(t *testing.T) {
	tests := []struct {
		name    string
		proxies []string
		spoofed bool
	}{
		{"untrusted peer ignores header", []string{"10.0.0.1"}, false},
		{"trusted peer range honours header", []string{"0.0.0.0/0"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{
				TrustProxy:       true,
				TrustProxyConfig: fiber.TrustProxyConfig{Proxies: tt.proxies},
			})
			app.Get("/", func(c fiber.Ctx) error { return c.SendString(ClientIP(c)) })

			req := httptest.NewRequest(fiber.MethodGet, "/", nil)
			req.Header.Set("X-Forwarded-For", "203.0.113.5")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			body, _ := io.ReadAll(resp.Body)
			if got := string(body) == "203.0.113.5"; got != tt.spoofed {
				t.Errorf("ClientIP() = %q, forwarded address used = %v, want %v", body, got, tt.spoofed)
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c fiber.Ctx) error {
		return ErrorResponse(c, fiber.StatusBadRequest, "INVALID_FIELD", "price is required")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"code":"INVALID_FIELD"`) {
		t.Errorf("body = %s", body)
	}
}
