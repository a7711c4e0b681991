package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/booking/internal/domain/identity"
	"github.com/clinic/booking/internal/platform/auth"
)

const bookingBody = `{"fullName":"Nguyen Van An","phone":"0901234567","email":"a@x.com",` +
	`"date":"2025-11-20","doctorId":"%s","appointHour":"%s"}`

func bodyFor(hour string) string {
	return strings.Replace(strings.Replace(bookingBody, "%s", doctorID.String(), 1), "%s", hour, 1)
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected *echo.HTTPError, got %v", err)
	return he.Code
}

func TestHandler_BookPublic(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, h.BookPublic(e.NewContext(jsonRequest(http.MethodPost, bodyFor("08:00")), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var conf Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	assert.Equal(t, "2025-11-20", conf.Date)
	assert.Regexp(t, `^BK-20251120-[0-9A-F]{4}$`, conf.AppointmentCode)
}

func TestHandler_BookPublic_StatusMapping(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	err := h.BookPublic(e.NewContext(jsonRequest(http.MethodPost, bodyFor("07:59")), httptest.NewRecorder()))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	require.NoError(t, h.BookPublic(e.NewContext(jsonRequest(http.MethodPost, bodyFor("08:00")), httptest.NewRecorder())))

	err = h.BookPublic(e.NewContext(jsonRequest(http.MethodPost, bodyFor("08:00")), httptest.NewRecorder()))
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	err = h.BookPublic(e.NewContext(jsonRequest(http.MethodPost, `{"fullName":`), httptest.NewRecorder()))
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	f.finder.err = errors.New("db down")
	err = h.BookPublic(e.NewContext(jsonRequest(http.MethodPost, bodyFor("09:00")), httptest.NewRecorder()))
	assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
}

func TestHandler_BookPrivate(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()
	userID := uuid.New()

	req := jsonRequest(http.MethodPost, bodyFor("08:00"))
	req = req.WithContext(auth.WithIdentity(req.Context(), userID.String(), "a@x.com", []string{auth.RolePatient}))
	rec := httptest.NewRecorder()
	require.NoError(t, h.BookPrivate(e.NewContext(req, rec)))

	var conf Confirmation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conf))
	p := f.patients.patients[conf.PatientID]
	require.NotNil(t, p.UserID)
	assert.Equal(t, userID, *p.UserID)
}

func TestHandler_BookPrivate_UnknownAccountIsUnauthorized(t *testing.T) {
	f := newFixture()
	f.patients.err = identity.ErrUserNotFound
	h := NewHandler(f.svc)
	e := echo.New()

	req := jsonRequest(http.MethodPost, bodyFor("08:00"))
	req = req.WithContext(auth.WithIdentity(req.Context(), uuid.NewString(), "a@x.com", []string{auth.RolePatient}))
	err := h.BookPrivate(e.NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestHandler_BookPrivate_RequiresPatientRole(t *testing.T) {
	f := newFixture()
	e := echo.New()
	NewHandler(f.svc).RegisterRoutes(e.Group("/api"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/booking/private", strings.NewReader(bodyFor("08:00"))))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_ListBusySlots(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()
	_, err := f.svc.Book(context.Background(), validRequest("08:00"), nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/?doctorId="+doctorID.String()+"&date=2025-11-20", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ListBusySlots(e.NewContext(req, rec)))

	var slots []BusySlot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	require.Len(t, slots, 1)
	assert.Equal(t, "Nguyen Van An", slots[0].PatientName)
	assert.Equal(t, StatusScheduled, slots[0].Status)

	// An empty day renders as [] rather than null.
	req = httptest.NewRequest(http.MethodGet, "/?doctorId="+doctorID.String()+"&date=2025-11-25", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, h.ListBusySlots(e.NewContext(req, rec)))
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandler_ListBusySlots_BadQuery(t *testing.T) {
	h := NewHandler(newFixture().svc)
	e := echo.New()
	for _, q := range []string{"?date=2025-11-20", "?doctorId=" + doctorID.String(), "?doctorId=" + doctorID.String() + "&date=bad"} {
		err := h.ListBusySlots(e.NewContext(httptest.NewRequest(http.MethodGet, "/"+q, nil), httptest.NewRecorder()))
		assert.Equal(t, http.StatusBadRequest, statusOf(t, err), q)
	}
}

func TestHandler_Cancel(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()
	conf, err := f.svc.Book(context.Background(), validRequest("08:00"), nil)
	require.NoError(t, err)

	cancel := func(id string) (*httptest.ResponseRecorder, error) {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
		c.SetParamNames("bookingId")
		c.SetParamValues(id)
		return rec, h.Cancel(c)
	}

	rec, err := cancel(conf.AppointmentID.String())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = cancel(conf.AppointmentID.String())
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = cancel("not-a-uuid")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestHandler_ListMine(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()
	userID := uuid.New()
	_, err := f.svc.Book(context.Background(), validRequest("08:00"), &userID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), userID.String(), "", []string{auth.RolePatient}))
	rec := httptest.NewRecorder()
	require.NoError(t, h.ListMine(e.NewContext(req, rec)))

	var resp struct {
		Data  []HistoryItem `json:"data"`
		Total int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "2025-11-20", resp.Data[0].Date)
}
