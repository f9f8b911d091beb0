package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/discount-registry/internal/model"
	"github.com/commercekit/discount-registry/internal/registry"
	"github.com/commercekit/discount-registry/internal/validator"
)

// mockRedeemRegistry is a mock implementation of RedeemRegistryInterface.
type mockRedeemRegistry struct {
	getByCodeFn      func(ctx context.Context, code string) (int, *model.Discount, error)
	isValidFn        func(ctx context.Context, code string) bool
	applyDiscountFn  func(ctx context.Context, code string, basePrice float64) float64
	incrementUsageFn func(ctx context.Context, code string) (int, error)
}

func (m *mockRedeemRegistry) GetByCode(ctx context.Context, code string) (int, *model.Discount, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return 0, nil, registry.ErrDiscountNotFound
}

func (m *mockRedeemRegistry) IsValid(ctx context.Context, code string) bool {
	if m.isValidFn != nil {
		return m.isValidFn(ctx, code)
	}
	return false
}

func (m *mockRedeemRegistry) ApplyDiscount(ctx context.Context, code string, basePrice float64) float64 {
	if m.applyDiscountFn != nil {
		return m.applyDiscountFn(ctx, code, basePrice)
	}
	return basePrice
}

func (m *mockRedeemRegistry) IncrementUsage(ctx context.Context, code string) (int, error) {
	if m.incrementUsageFn != nil {
		return m.incrementUsageFn(ctx, code)
	}
	return 0, registry.ErrDiscountNotFound
}

func setupRedeemTestApp(mockReg *mockRedeemRegistry) *fiber.App {
	app := fiber.New()
	validate := validator.New()
	h := NewRedeemHandler(mockReg, validate)
	app.Get("/api/discounts/validate/:code", h.ValidateDiscount)
	app.Post("/api/discounts/apply", h.ApplyDiscount)
	app.Post("/api/discounts/redeem", h.RedeemDiscount)
	return app
}

func TestValidateDiscount_Valid(t *testing.T) {
	mockReg := &mockRedeemRegistry{
		isValidFn: func(ctx context.Context, code string) bool {
			assert.Equal(t, "SAVE10", code)
			return true
		},
	}
	app := setupRedeemTestApp(mockReg)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/discounts/validate/SAVE10", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Code  string `json:"code"`
		Valid bool   `json:"valid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "SAVE10", result.Code)
	assert.True(t, result.Valid)
}

func TestValidateDiscount_UnknownCodeIsInvalidNotError(t *testing.T) {
	app := setupRedeemTestApp(&mockRedeemRegistry{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/discounts/validate/NOPE", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.False(t, result.Valid)
}

func TestApplyDiscount_Success(t *testing.T) {
	mockReg := &mockRedeemRegistry{
		getByCodeFn: func(ctx context.Context, code string) (int, *model.Discount, error) {
			return 1, &model.Discount{Code: "SAVE10", Type: model.TypePercentage, Amount: 10, Status: model.StatusActive}, nil
		},
		applyDiscountFn: func(ctx context.Context, code string, basePrice float64) float64 {
			return basePrice * 0.9
		},
		isValidFn: func(ctx context.Context, code string) bool {
			return true
		},
	}
	app := setupRedeemTestApp(mockReg)

	body := `{"code": "SAVE10", "base_price": 100}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/discounts/apply", body))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Code       string  `json:"code"`
		BasePrice  float64 `json:"base_price"`
		FinalPrice float64 `json:"final_price"`
		Valid      bool    `json:"valid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "SAVE10", result.Code)
	assert.InDelta(t, 100, result.BasePrice, 1e-9)
	assert.InDelta(t, 90, result.FinalPrice, 1e-9)
	assert.True(t, result.Valid)
}

func TestApplyDiscount_UnknownCode(t *testing.T) {
	app := setupRedeemTestApp(&mockRedeemRegistry{})

	body := `{"code": "NOPE", "base_price": 100}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/discounts/apply", body))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "discount not found", result["error"])
}

func TestApplyDiscount_MissingBasePrice(t *testing.T) {
	app := setupRedeemTestApp(&mockRedeemRegistry{})

	body := `{"code": "SAVE10"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/discounts/apply", body))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "invalid request: base_price is required", result["error"])
}

func TestApplyDiscount_RegistryError(t *testing.T) {
	mockReg := &mockRedeemRegistry{
		getByCodeFn: func(ctx context.Context, code string) (int, *model.Discount, error) {
			return 0, nil, errors.New("backend unavailable")
		},
	}
	app := setupRedeemTestApp(mockReg)

	body := `{"code": "SAVE10", "base_price": 100}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/discounts/apply", body))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestRedeemDiscount_Success(t *testing.T) {
	mockReg := &mockRedeemRegistry{
		incrementUsageFn: func(ctx context.Context, code string) (int, error) {
			assert.Equal(t, "SAVE10", code)
			return 3, nil
		},
	}
	app := setupRedeemTestApp(mockReg)

	body := `{"code": "SAVE10"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/discounts/redeem", body))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result struct {
		Code string `json:"code"`
		Uses int    `json:"uses"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "SAVE10", result.Code)
	assert.Equal(t, 3, result.Uses)
}

func TestRedeemDiscount_UnknownCode(t *testing.T) {
	app := setupRedeemTestApp(&mockRedeemRegistry{})

	body := `{"code": "NOPE"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/discounts/redeem", body))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRedeemDiscount_MissingCode(t *testing.T) {
	app := setupRedeemTestApp(&mockRedeemRegistry{})

	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/discounts/redeem", `{}`))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var result map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "invalid request: code is required", result["error"])
}

func TestRedeemDiscount_RegistryError(t *testing.T) {
	mockReg := &mockRedeemRegistry{
		incrementUsageFn: func(ctx context.Context, code string) (int, error) {
			return 0, errors.New("backend unavailable")
		},
	}
	app := setupRedeemTestApp(mockReg)

	body := `{"code": "SAVE10"}`
	resp, err := app.Test(jsonRequest(http.MethodPost, "/api/discounts/redeem", body))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
