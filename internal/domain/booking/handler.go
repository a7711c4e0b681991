package booking

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/pkg/clock"
	"github.com/clinic/booking/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the booking endpoints. mw is applied to the whole
// group, typically a rate limiter.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	g := api.Group("/booking", mw...)
	g.POST("/public", h.BookPublic)
	g.GET("/info_slot_busy", h.ListBusySlots)
	g.DELETE("/cancel/:bookingId", h.Cancel)

	patient := g.Group("", auth.RequireRole(auth.RolePatient))
	patient.POST("/private", h.BookPrivate)
	patient.GET("/mine", h.ListMine)
}

// httpError maps the booking error kinds onto status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, Reason(err))
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, Reason(err))
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, Reason(err))
	case errors.Is(err, ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, Reason(err))
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func (h *Handler) bind(c echo.Context) (Request, error) {
	var req Request
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return req, nil
}

func (h *Handler) BookPublic(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	conf, err := h.svc.Book(c.Request().Context(), req, nil)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conf)
}

func (h *Handler) BookPrivate(c echo.Context) error {
	userID, err := auth.UserUUID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	conf, err := h.svc.Book(c.Request().Context(), req, &userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conf)
}

// ListBusySlots handles GET /booking/info_slot_busy?doctorId=&date=.
func (h *Handler) ListBusySlots(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctorId must be a valid id")
	}
	date, err := clock.ParseDate(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	slots, err := h.svc.ListBusySlots(c.Request().Context(), doctorID, date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, slots)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("bookingId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	if err := h.svc.Cancel(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListMine(c echo.Context) error {
	userID, err := auth.UserUUID(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	pg, err := pagination.Parse(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, total, err := h.svc.ListForUser(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}
