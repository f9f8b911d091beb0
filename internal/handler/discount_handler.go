package handler

import (
	"context"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/commercekit/discount-registry/internal/model"
	"github.com/commercekit/discount-registry/internal/registry"
)

// DiscountRegistryInterface defines the registry operations the CRUD handler
// depends on.
type DiscountRegistryInterface interface {
	GetAll(ctx context.Context) (map[int]model.Discount, error)
	Get(ctx context.Context, id int) (*model.Discount, error)
	Store(ctx context.Context, d model.Discount, id *int) (int, error)
	Remove(ctx context.Context, id int) error
	SetStatus(ctx context.Context, id int, status model.DiscountStatus) bool
}

// DiscountHandler handles HTTP requests for discount CRUD operations.
type DiscountHandler struct {
	registry  DiscountRegistryInterface
	validator *validator.Validate
}

// NewDiscountHandler creates a new DiscountHandler with the given registry and validator.
func NewDiscountHandler(reg DiscountRegistryInterface, v *validator.Validate) *DiscountHandler {
	return &DiscountHandler{registry: reg, validator: v}
}

// formatDiscountValidationError converts validator errors to stable messages.
// Provides defensive handling for unknown fields with descriptive fallback messages.
func formatDiscountValidationError(err error) string {
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
			case "Type":
				if tag == "required" {
					return "invalid request: type is required"
				}
				if tag == "oneof" {
					return "invalid request: type must be flat or percentage"
				}
				return "invalid request: type is invalid"
			case "Amount":
				if tag == "required" {
					return "invalid request: amount is required"
				}
				if tag == "gte" {
					return "invalid request: amount cannot be negative"
				}
				return "invalid request: amount is invalid"
			case "MaxUses":
				if tag == "gte" {
					return "invalid request: max_uses cannot be negative"
				}
				return "invalid request: max_uses is invalid"
			case "Status":
				if tag == "required" {
					return "invalid request: status is required"
				}
				if tag == "notblank" {
					return "invalid request: status cannot be whitespace only"
				}
				return "invalid request: status is invalid"
			default:
				// Defensive: handle unknown fields with descriptive message
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

// discountFromRequest builds a Discount record from a validated request.
func discountFromRequest(req *model.CreateDiscountRequest) model.Discount {
	status := model.DiscountStatus(req.Status)
	if status == "" {
		status = model.StatusActive
	}
	return model.Discount{
		Code:      req.Code,
		Type:      model.DiscountType(req.Type),
		Amount:    *req.Amount,
		Status:    status,
		MaxUses:   req.MaxUses,
		StartsAt:  req.StartsAt,
		ExpiresAt: req.ExpiresAt,
	}
}

// CreateDiscount handles POST /api/discounts requests to create a new discount.
func (h *DiscountHandler) CreateDiscount(c *fiber.Ctx) error {
	var req model.CreateDiscountRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatDiscountValidationError(err)})
	}

	id, err := h.registry.Store(c.Context(), discountFromRequest(&req), nil)
	if err != nil {
		log.Error().Err(err).Str("code", req.Code).Msg("failed to create discount")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// ListDiscounts handles GET /api/discounts requests to list all discounts.
func (h *DiscountHandler) ListDiscounts(c *fiber.Ctx) error {
	discounts, err := h.registry.GetAll(c.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list discounts")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	ids := make([]int, 0, len(discounts))
	for id := range discounts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	resp := make([]model.DiscountResponse, 0, len(ids))
	for _, id := range ids {
		resp = append(resp, model.DiscountResponse{ID: id, Discount: discounts[id]})
	}
	return c.JSON(resp)
}

// GetDiscount handles GET /api/discounts/:id requests.
func (h *DiscountHandler) GetDiscount(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be an integer"})
	}

	d, err := h.registry.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrDiscountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "discount not found"})
		}
		log.Error().Err(err).Int("discount_id", id).Msg("failed to get discount")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(model.DiscountResponse{ID: id, Discount: *d})
}

// UpdateDiscount handles PUT /api/discounts/:id requests. The usage count of
// the existing record is carried over; everything else is replaced.
func (h *DiscountHandler) UpdateDiscount(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be an integer"})
	}

	var req model.CreateDiscountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatDiscountValidationError(err)})
	}

	existing, err := h.registry.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrDiscountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "discount not found"})
		}
		log.Error().Err(err).Int("discount_id", id).Msg("failed to load discount for update")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	d := discountFromRequest(&req)
	d.Uses = existing.Uses

	if _, err := h.registry.Store(c.Context(), d, &id); err != nil {
		log.Error().Err(err).Int("discount_id", id).Msg("failed to update discount")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.JSON(model.DiscountResponse{ID: id, Discount: d})
}

// DeleteDiscount handles DELETE /api/discounts/:id requests. Deleting an
// unknown id succeeds, matching the registry's no-op semantics.
func (h *DiscountHandler) DeleteDiscount(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be an integer"})
	}

	if err := h.registry.Remove(c.Context(), id); err != nil {
		log.Error().Err(err).Int("discount_id", id).Msg("failed to delete discount")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	return c.Status(fiber.StatusNoContent).Send(nil)
}

// UpdateStatus handles PATCH /api/discounts/:id/status requests.
func (h *DiscountHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request: id must be an integer"})
	}

	var req model.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatDiscountValidationError(err)})
	}

	if !h.registry.SetStatus(c.Context(), id, model.DiscountStatus(req.Status)) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "discount not found"})
	}

	log.Info().Int("discount_id", id).Str("status", req.Status).Msg("discount status updated")
	return c.Status(fiber.StatusOK).Send(nil)
}
