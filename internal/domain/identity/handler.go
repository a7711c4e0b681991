package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/booking/internal/platform/auth"
)

type Handler struct {
	resolver *Resolver
}

func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients", auth.RequireRole(auth.RolePatient))
	g.GET("/me", h.GetMe)
	g.POST("/me/merge", h.MergeMe)
}

// GetMe returns the caller's patient record.
func (h *Handler) GetMe(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.UserUUID(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	p, err := h.resolver.Patient(ctx, userID)
	if errors.Is(err, ErrPatientNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no patient record yet")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, p)
}

// MergeMe adopts guest bookings made under the caller's email without
// waiting for the next private booking.
func (h *Handler) MergeMe(c echo.Context) error {
	ctx := c.Request().Context()
	userID, err := auth.UserUUID(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	res, err := h.resolver.Merge(ctx, userID)
	switch {
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
	return c.JSON(http.StatusOK, map[string]int64{
		"mergedPatients":    res.Guests,
		"movedAppointments": res.Appointments,
	})
}
