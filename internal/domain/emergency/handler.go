package emergency

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
	g := api.Group("/emergency", auth.JWTMiddleware(v), auth.RequireUserType(auth.UserTypePatient))
	g.GET("/contacts", h.ListContacts)
	g.POST("/contacts", h.CreateContact)
	g.PUT("/contacts/:id", h.UpdateContact)
	g.DELETE("/contacts/:id", h.DeleteContact)
	g.GET("/alerts", h.ListAlerts)
	g.POST("/alerts", h.SendAlert)
	g.POST("/alerts/dispatch", h.Dispatch)

	hg := api.Group("/hospital/alerts", auth.JWTMiddleware(v), auth.RequireUserType(auth.UserTypeHospital))
	hg.GET("", h.HospitalAlerts)
	hg.POST("/:id/acknowledge", h.Acknowledge)
	hg.POST("/:id/resolve", h.Resolve)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func patientQuery(c echo.Context) (uuid.UUID, error) {
	raw := c.QueryParam("patientId")
	if raw == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "patientId is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid patientId")
	}
	return id, nil
}

// -- Contact Handlers --

func (h *Handler) ListContacts(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pid, err := patientQuery(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListContacts(c.Request().Context(), id.AdminID, pid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", items)
}

func (h *Handler) CreateContact(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var in ContactInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	contact, err := h.svc.CreateContact(c.Request().Context(), id.AdminID, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusCreated, "Emergency contact added", contact)
}

func (h *Handler) UpdateContact(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	cid, err := pathID(c)
	if err != nil {
		return err
	}
	var in ContactInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	contact, err := h.svc.UpdateContact(c.Request().Context(), id.AdminID, cid, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Emergency contact updated", contact)
}

func (h *Handler) DeleteContact(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	cid, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteContact(c.Request().Context(), id.AdminID, cid); err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Emergency contact removed", nil)
}

// -- Alert Handlers --

func (h *Handler) ListAlerts(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	pid, err := patientQuery(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListAlerts(c.Request().Context(), id.AdminID, pid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", items)
}

func (h *Handler) SendAlert(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var in AlertInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a, err := h.svc.SendAlert(c.Request().Context(), id.AdminID, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusCreated, "Emergency alert sent", a)
}

func (h *Handler) Dispatch(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var in AlertInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.Dispatch(c.Request().Context(), id.AdminID, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusCreated, "Emergency alert dispatched", d)
}

// -- Hospital Handlers --

func (h *Handler) HospitalAlerts(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	items, err := h.svc.HospitalAlerts(c.Request().Context(), id.AdminID)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", items)
}

func (h *Handler) Acknowledge(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	aid, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Acknowledge(c.Request().Context(), id.AdminID, aid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Alert acknowledged", a)
}

func (h *Handler) Resolve(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	aid, err := pathID(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Resolve(c.Request().Context(), id.AdminID, aid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Alert resolved", a)
}
