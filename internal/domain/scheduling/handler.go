package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/pkg/clock"
	"github.com/clinic/booking/pkg/pagination"
)

type Handler struct {
	svc      *Service
	calendar *clock.Calendar
}

func NewHandler(svc *Service, calendar *clock.Calendar) *Handler {
	return &Handler{svc: svc, calendar: calendar}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints are public so guests can pick a working day.
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)
	api.GET("/schedules", h.ListSchedules)
	api.GET("/schedules/:id", h.GetSchedule)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	writeGroup.POST("/schedules", h.CreateSchedule)

	adminGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	adminGroup.POST("/doctors", h.CreateDoctor)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrScheduleNotFound), errors.Is(err, ErrDoctorNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrScheduleExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Doctor Handlers --

type createDoctorRequest struct {
	FullName  string  `json:"fullName"`
	Specialty *string `json:"specialty"`
}

func (h *Handler) CreateDoctor(c echo.Context) error {
	var req createDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d := &Doctor{FullName: req.FullName, Specialty: req.Specialty}
	if err := h.svc.CreateDoctor(c.Request().Context(), d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg, err := pagination.Parse(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewPage(items, total, pg))
}

// -- Schedule Handlers --

type createScheduleRequest struct {
	DoctorID  uuid.UUID       `json:"doctorId"`
	WorkDate  string          `json:"workDate"`
	StartTime clock.TimeOfDay `json:"startTime"`
	EndTime   clock.TimeOfDay `json:"endTime"`
}

func (h *Handler) CreateSchedule(c echo.Context) error {
	var req createScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	date, err := clock.ParseDate(req.WorkDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if date.Before(h.calendar.Today()) {
		return echo.NewHTTPError(http.StatusBadRequest, "workDate must not be in the past")
	}

	sched := &Schedule{
		DoctorID:  req.DoctorID,
		WorkDate:  date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := h.svc.CreateSchedule(c.Request().Context(), sched); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sched.ToResponse())
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	sched, err := h.svc.GetSchedule(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sched.ToResponse())
}

// ListSchedules handles GET /schedules?doctorId=&from=. from defaults to
// today at the clinic.
func (h *Handler) ListSchedules(c echo.Context) error {
	doctorID, err := uuid.Parse(c.QueryParam("doctorId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "doctorId is required")
	}
	var from time.Time
	if f := c.QueryParam("from"); f != "" {
		if from, err = clock.ParseDate(f); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	} else {
		from = h.calendar.Today()
	}

	pg, err := pagination.Parse(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, total, err := h.svc.ListSchedules(c.Request().Context(), doctorID, from, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	out := make([]ScheduleResponse, 0, len(items))
	for _, s := range items {
		out = append(out, s.ToResponse())
	}
	return c.JSON(http.StatusOK, pagination.NewPage(out, total, pg))
}
