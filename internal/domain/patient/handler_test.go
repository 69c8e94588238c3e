package patient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHandler(t *testing.T) (*Handler, *echo.Echo) {
	t.Helper()
	h := NewHandler(newTestService(t), zerolog.Nop())
	e := echo.New()
	return h, e
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestHandler_ListPatients(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body []map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body) != 2 {
		t.Fatalf("expected 2 patients, got %d", len(body))
	}
	if _, ok := body[0]["wearableSensorData"]; ok {
		t.Error("list should only carry summary fields")
	}
}

func TestHandler_GetPatient(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("p1")

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["id"] != "p1" || body["room"] != "4B" {
		t.Errorf("expected full record for p1, got %v", body)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.GetPatient(c)
	if code := httpStatus(t, err); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_GetWearableData_Missing(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("p2")

	err := h.GetWearableData(c)
	if code := httpStatus(t, err); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_GetRiskPrediction(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("p1")

	if err := h.GetRiskPrediction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["score"] != 0.72 {
		t.Errorf("expected score 0.72, got %v", body["score"])
	}
}

func TestHandler_GetConversationLog_WrongDate(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/?date=2024-01-01", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("p1")

	err := h.GetConversationLog(c)
	if code := httpStatus(t, err); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_GetAvailableDates(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("p1")

	if err := h.GetAvailableDates(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Dates []string `json:"dates"`
	}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Dates) != 4 {
		t.Errorf("expected 4 dates, got %v", body.Dates)
	}
}

func TestHandler_SelectPatient(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/selection", strings.NewReader(`{"id":"p2"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SelectPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sel struct {
		RequestedID string         `json:"requestedId"`
		Patient     map[string]any `json:"patient"`
		Version     uint64         `json:"version"`
	}
	json.Unmarshal(rec.Body.Bytes(), &sel)
	if sel.Patient["id"] != "p2" {
		t.Errorf("expected p2 selected, got %v", sel.Patient)
	}
	if sel.Version != 1 {
		t.Errorf("expected version 1, got %d", sel.Version)
	}
}

func TestHandler_SelectPatient_MissClearsSelection(t *testing.T) {
	h, e := newTestHandler(t)
	h.svc.Select("p1")

	req := httptest.NewRequest(http.MethodPut, "/api/v1/selection", strings.NewReader(`{"id":"p9"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SelectPatient(c); err != nil {
		t.Fatalf("a lookup miss must not be an error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"patient":null`) {
		t.Errorf("expected null patient, got %s", rec.Body.String())
	}
	if h.svc.Store().Selected() != nil {
		t.Error("expected selection to be cleared")
	}
}

func TestHandler_SelectPatient_MissingID(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/selection", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.SelectPatient(c)
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

// tooLargeBody fails the way a size-limited request body does.
type tooLargeBody struct{}

func (tooLargeBody) Read([]byte) (int, error) {
	return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
}

func TestHandler_SelectPatient_KeepsReadErrorStatus(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/selection", tooLargeBody{})
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.SelectPatient(c)
	if code := httpStatus(t, err); code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", code)
	}
	if h.svc.Selection().Version != 0 {
		t.Error("a rejected body must not change the selection")
	}
}

func TestHandler_SelectPatient_MalformedBody(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/selection", strings.NewReader(`{"id":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.SelectPatient(c)
	if code := httpStatus(t, err); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_GetSelection_Initial(t *testing.T) {
	h, e := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/selection", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetSelection(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"patient":null`) {
		t.Errorf("expected no selection, got %s", rec.Body.String())
	}
}

func TestHandler_RegisterRoutes(t *testing.T) {
	h, e := newTestHandler(t)
	h.RegisterRoutes(e.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/p1/available-dates", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
