package patient

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medilocker/medilocker/internal/platform/auth"
	"github.com/medilocker/medilocker/pkg/envelope"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, v auth.AccessVerifier) {
	g := api.Group("/patients", auth.JWTMiddleware(v), auth.RequireUserType(auth.UserTypePatient))
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/emergency-info", h.EmergencyInfo)

	// Responder lookup – no authentication
	api.GET("/public/emergency-info", h.PublicEmergencyInfo)
}

// PatientID parses the :id path segment shared by every /patients/:id route.
func PatientID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), id.AdminID)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", items)
}

func (h *Handler) Create(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Create(c.Request().Context(), id.AdminID, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusCreated, "Patient profile created", p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pid, err := PatientID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id.AdminID, pid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pid, err := PatientID(c)
	if err != nil {
		return err
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p, err := h.svc.Update(c.Request().Context(), id.AdminID, pid, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Patient profile updated", p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pid, err := PatientID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id.AdminID, pid); err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Patient profile deleted", nil)
}

func (h *Handler) EmergencyInfo(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pid, err := PatientID(c)
	if err != nil {
		return err
	}
	info, err := h.svc.EmergencyInfo(c.Request().Context(), id.AdminID, pid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", info)
}

func (h *Handler) PublicEmergencyInfo(c echo.Context) error {
	info, err := h.svc.PublicEmergencyInfo(c.Request().Context(), c.QueryParam("email"))
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", info)
}
