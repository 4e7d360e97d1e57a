package httpapi

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/securevault/internal/common"
	"github.com/spec-kit/securevault/internal/logging"
	"github.com/spec-kit/securevault/internal/server/services"
)

// SecretsHandler exposes CRUD endpoints over the authenticated user's
// encrypted secrets.
type SecretsHandler struct {
	secrets *services.SecretService
	logger  logging.Logger
}

// NewSecretsHandler constructs the handler.
func NewSecretsHandler(secrets *services.SecretService, logger logging.Logger) *SecretsHandler {
	return &SecretsHandler{secrets: secrets, logger: logger}
}

// Create handles POST /api/v1/secrets.
func (h *SecretsHandler) Create(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return common.ErrorUnauthorized
	}

	var req secretCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := validateSecretName(req.Name); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if len(req.Description) > maxDescriptionLength {
		return fiber.NewError(http.StatusBadRequest, "description too long")
	}
	if err := validateSecretContent(req.Content); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	secret, err := h.secrets.Create(c.UserContext(), user.ID, req.Name, req.Description, req.Content)
	if err != nil {
		return err
	}
	h.logger.Info(c.UserContext(), "secret created", "user_id", user.ID, "secret_id", secret.ID)
	return c.Status(http.StatusCreated).JSON(newSecretResponse(secret))
}

// List handles GET /api/v1/secrets. Items carry metadata only.
func (h *SecretsHandler) List(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return common.ErrorUnauthorized
	}

	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 10)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	result, err := h.secrets.List(c.UserContext(), user.ID, page, pageSize)
	if err != nil {
		return err
	}

	items := make([]secretResponse, 0, len(result.Items))
	for _, s := range result.Items {
		items = append(items, newSecretResponse(s))
	}
	return c.JSON(secretListResponse{
		Items:    items,
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
		Pages:    result.Pages,
	})
}

// Get handles GET /api/v1/secrets/:id and returns the decrypted content.
func (h *SecretsHandler) Get(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return common.ErrorUnauthorized
	}

	secret, content, err := h.secrets.Get(c.UserContext(), user.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(secretWithContentResponse{
		secretResponse: newSecretResponse(secret),
		Content:        content,
	})
}

// Update handles PUT /api/v1/secrets/:id.
func (h *SecretsHandler) Update(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return common.ErrorUnauthorized
	}

	var req secretUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Name != nil {
		if err := validateSecretName(*req.Name); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	if req.Description != nil && len(*req.Description) > maxDescriptionLength {
		return fiber.NewError(http.StatusBadRequest, "description too long")
	}
	if req.Content != nil {
		if err := validateSecretContent(*req.Content); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	secret, err := h.secrets.Update(c.UserContext(), user.ID, c.Params("id"), req.Name, req.Description, req.Content)
	if err != nil {
		return err
	}
	h.logger.Info(c.UserContext(), "secret updated", "user_id", user.ID, "secret_id", secret.ID)
	return c.JSON(newSecretResponse(secret))
}

// Delete handles DELETE /api/v1/secrets/:id.
func (h *SecretsHandler) Delete(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return common.ErrorUnauthorized
	}

	id := c.Params("id")
	if err := h.secrets.Delete(c.UserContext(), user.ID, id); err != nil {
		return err
	}
	h.logger.Info(c.UserContext(), "secret deleted", "user_id", user.ID, "secret_id", id)
	return c.SendStatus(http.StatusNoContent)
}
