package handlers

import (
	"errors"
	"log"

	"github.com/classpilot/api/services"
	"github.com/classpilot/api/services/identity"
	"github.com/classpilot/api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// ServiceError reduces a service-layer error to the uniform envelope. The
// original error is logged for operators; callers only see a coded
// success/failure signal.
func ServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrConflict):
		return response.Conflict(c, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrInvalidInput):
		return response.BadRequest(c, err.Error())
	}

	var provErr *identity.ProviderError
	if errors.As(err, &provErr) {
		log.Printf("identity provider error on %s %s: %v", c.Method(), c.Path(), err)
		return response.ServiceUnavailable(c, "Identity provider unavailable")
	}

	log.Printf("internal error on %s %s: %v", c.Method(), c.Path(), err)
	return response.InternalServerError(c, "")
}
