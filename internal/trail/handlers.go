package trail

import (
	"errors"
	"strconv"

	"backend-accessnature/internal/auth"
	"backend-accessnature/internal/route"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Name    string        `json:"name"`
			Session route.Session `json:"session"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Name == "" || req.Session.Empty() {
			return fiber.NewError(fiber.StatusBadRequest, "name and session entries required")
		}
		for _, e := range req.Session.Entries {
			if err := e.Validate(); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		saved, err := svc.SaveRoute(c.Context(), auth.UserID(c), req.Name, req.Session)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(saved)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		routes, err := svc.RoutesForUser(c.Context(), auth.UserID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if routes == nil {
			routes = []Route{}
		}
		return c.JSON(routes)
	})

	r.Get("/nearby", func(c *fiber.Ctx) error {
		lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
		lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
		if errLat != nil || errLng != nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng are required")
		}
		routes, err := svc.RoutesNear(c.Context(), lat, lng, c.QueryFloat("radius_km", 5))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if routes == nil {
			routes = []Route{}
		}
		return c.JSON(routes)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		found, err := svc.GetRoute(c.Context(), c.Params("id"))
		if err != nil {
			return routeError(err)
		}
		return c.JSON(found)
	})

	r.Get("/:id/gpx", func(c *fiber.Ctx) error {
		found, err := svc.GetRoute(c.Context(), c.Params("id"))
		if err != nil {
			return routeError(err)
		}
		doc, err := ExportGPX(found)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Attachment(found.ID + ".gpx")
		c.Set(fiber.HeaderContentType, "application/gpx+xml")
		return c.Send(doc)
	})

	r.Delete("/:id", authMiddleware, func(c *fiber.Ctx) error {
		if err := svc.DeleteRoute(c.Context(), c.Params("id"), auth.UserID(c)); err != nil {
			return routeError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func routeError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "trail not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
