package patient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medilocker/medilocker/internal/platform/apperror"
	"github.com/medilocker/medilocker/internal/platform/auth"
)

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	svc, repo := newTestService()
	return NewHandler(svc), repo, echo.New()
}

func asPatient(req *http.Request, adminID uuid.UUID) *http.Request {
	return req.WithContext(auth.WithIdentity(context.Background(),
		auth.Identity{AdminID: adminID, Email: "jane@example.com", UserType: auth.UserTypePatient}))
}

func TestHandler_Create(t *testing.T) {
	h, repo, e := newTestHandler()
	adminID := uuid.New()
	body := `{"fullName":"Jane Doe","bloodType":"O+","dateOfBirth":"1990-05-17"}`
	req := asPatient(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), adminID)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if len(repo.patients) != 1 {
		t.Errorf("expected 1 patient stored, got %d", len(repo.patients))
	}
}

func TestHandler_Create_BadRequest(t *testing.T) {
	h, _, e := newTestHandler()
	req := asPatient(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"bloodType":"O+"}`)), uuid.New())
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Create(c)
	if apperror.StatusOf(err) != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fullName, got %v", err)
	}
}

func TestHandler_Get_OtherAccount(t *testing.T) {
	h, _, e := newTestHandler()
	p := mustCreate(t, h.svc, uuid.New(), Input{FullName: str("Jane")})

	req := asPatient(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New())
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.Get(c); apperror.StatusOf(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_Get_InvalidID(t *testing.T) {
	h, _, e := newTestHandler()
	req := asPatient(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New())
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if err := h.Get(c); apperror.StatusOf(err) != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_PublicEmergencyInfo(t *testing.T) {
	h, repo, e := newTestHandler()
	adminID := uuid.New()
	repo.emails["jane@example.com"] = adminID
	mustCreate(t, h.svc, adminID, Input{FullName: str("Jane"), BloodType: str("B-")})

	req := httptest.NewRequest(http.MethodGet, "/?email=jane@example.com", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.PublicEmergencyInfo(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"bloodType":"B-"`) {
		t.Errorf("expected blood type in body, got %s", rec.Body.String())
	}
}
