package hospital

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medilocker/medilocker/internal/platform/auth"
)

func newTestHandler() (*Handler, *mockRepo, *echo.Echo) {
	svc, repo := newTestService()
	return NewHandler(svc), repo, echo.New()
}

type listBody struct {
	Success bool `json:"success"`
	Data    struct {
		Items []struct {
			Name       string   `json:"name"`
			DistanceKm *float64 `json:"distanceKm"`
		} `json:"items"`
		Total int `json:"total"`
	} `json:"data"`
}

func TestHandler_List_Geo(t *testing.T) {
	h, repo, e := newTestHandler()
	seedDirectory(repo)

	req := httptest.NewRequest(http.MethodGet, "/?latitude=40.7128&longitude=-74.0060&radius=200", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Total != 3 {
		t.Fatalf("expected 3 hospitals, got %d", body.Data.Total)
	}
	if body.Data.Items[0].Name != "Newark Community" || body.Data.Items[0].DistanceKm == nil {
		t.Errorf("expected Newark first with a distance, got %+v", body.Data.Items[0])
	}
	if body.Data.Items[2].DistanceKm != nil {
		t.Error("expected unmapped hospital last without distance")
	}
}

func TestHandler_List_HugePage(t *testing.T) {
	h, repo, e := newTestHandler()
	seedDirectory(repo)

	req := httptest.NewRequest(http.MethodGet, "/?page=922337203685477580&limit=20", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body listBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data.Items) != 0 || body.Data.Total == 0 {
		t.Errorf("expected an empty page past the end, got %d items of %d", len(body.Data.Items), body.Data.Total)
	}
}

func TestHandler_List_InvalidLatitude(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?latitude=abc&longitude=1", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if err := h.List(c); err == nil {
		t.Error("expected error for invalid latitude")
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if err := h.Get(c); err == nil {
		t.Error("expected error for unknown hospital")
	}
}

func TestHandler_UpdateProfile(t *testing.T) {
	h, repo, e := newTestHandler()
	adminID := uuid.New()
	body := `{"name":"St Mary","city":"Austin","latitude":30.27,"longitude":-97.74,"emergencyServices":true}`
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(auth.WithIdentity(context.Background(),
		auth.Identity{AdminID: adminID, Email: "er@stmary.org", UserType: auth.UserTypeHospital}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.UpdateProfile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	stored, _ := repo.GetByAdminID(context.Background(), adminID)
	if stored == nil || stored.Name != "St Mary" || !stored.EmergencyServices {
		t.Errorf("expected profile to be stored, got %+v", stored)
	}
}

func TestHandler_GetProfile_RequiresIdentity(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := h.GetProfile(c); err == nil {
		t.Error("expected error without identity")
	}
}
