package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/commercekit/discount-registry/internal/model"
	"github.com/commercekit/discount-registry/internal/registry"
)

// RedeemRegistryInterface defines the registry operations the redemption
// handler depends on.
type RedeemRegistryInterface interface {
	GetByCode(ctx context.Context, code string) (int, *model.Discount, error)
	IsValid(ctx context.Context, code string) bool
	ApplyDiscount(ctx context.Context, code string, basePrice float64) float64
	IncrementUsage(ctx context.Context, code string) (int, error)
}

// RedeemHandler handles HTTP requests for validating, pricing, and redeeming
// discount codes.
type RedeemHandler struct {
	registry  RedeemRegistryInterface
	validator *validator.Validate
}

// NewRedeemHandler creates a new RedeemHandler with the given registry and validator.
func NewRedeemHandler(reg RedeemRegistryInterface, v *validator.Validate) *RedeemHandler {
	return &RedeemHandler{registry: reg, validator: v}
}

// formatRedeemValidationError converts validator errors to stable messages for
// the redemption endpoints.
func formatRedeemValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "Code":
				if tag == "required" {
					return "invalid request: code is required"
				}
				if tag == "notblank" {
					return "invalid request: code cannot be whitespace only"
				}
				if tag == "max" {
					return "invalid request: code exceeds maximum length of 255"
				}
				return "invalid request: code is invalid"
			case "BasePrice":
				if tag == "required" {
					return "invalid request: base_price is required"
				}
				return "invalid request: base_price is invalid"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				if tag == "max" {
					return "invalid request: " + field + " exceeds maximum length"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// ValidateDiscount handles GET /api/discounts/validate/:code requests.
// An unknown code is not an error; it reports valid=false like any other
// failed check.
func (h *RedeemHandler) ValidateDiscount(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: code is required"})
	}

	return c.JSON(fiber.Map{
		"code":  code,
		"valid": h.registry.IsValid(c.Context(), code),
	})
}

// ApplyDiscount handles POST /api/discounts/apply requests to price a base
// amount against a code. The discounted price is not clamped at zero.
func (h *RedeemHandler) ApplyDiscount(c *fiber.Ctx) error {
	var req model.ApplyDiscountRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatRedeemValidationError(err)})
	}

	if _, _, err := h.registry.GetByCode(c.Context(), req.Code); err != nil {
		if errors.Is(err, registry.ErrDiscountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "discount not found"})
		}
		log.Error().Err(err).Str("code", req.Code).Msg("failed to look up discount")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	finalPrice := h.registry.ApplyDiscount(c.Context(), req.Code, *req.BasePrice)

	return c.JSON(fiber.Map{
		"code":        req.Code,
		"base_price":  *req.BasePrice,
		"final_price": finalPrice,
		"valid":       h.registry.IsValid(c.Context(), req.Code),
	})
}

// RedeemDiscount handles POST /api/discounts/redeem requests to record a use
// of a code.
func (h *RedeemHandler) RedeemDiscount(c *fiber.Ctx) error {
	var req model.RedeemDiscountRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatRedeemValidationError(err)})
	}

	uses, err := h.registry.IncrementUsage(c.Context(), req.Code)
	if err != nil {
		if errors.Is(err, registry.ErrDiscountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "discount not found"})
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("code", req.Code).
			Msg("failed to redeem discount")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("code", req.Code).
		Int("uses", uses).
		Msg("discount redeemed")

	return c.JSON(fiber.Map{
		"code": req.Code,
		"uses": uses,
	})
}
