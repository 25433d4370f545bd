package sharing

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medilocker/medilocker/internal/domain/patient"
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
	pg := api.Group("/patients/:id/shared-access", auth.JWTMiddleware(v), auth.RequireUserType(auth.UserTypePatient))
	pg.GET("", h.List)
	pg.POST("", h.Create)
	pg.GET("/stats", h.Stats)
	pg.PUT("/:shareId", h.Update)
	pg.POST("/:shareId/revoke", h.Revoke)

	hg := api.Group("/hospital/shared-access", auth.JWTMiddleware(v), auth.RequireUserType(auth.UserTypeHospital))
	hg.GET("", h.Inbound)
	hg.POST("/:id/accept", h.Accept)
	hg.POST("/:id/reject", h.Reject)
	hg.POST("/:id/revoke", h.RevokeAsHospital)
	hg.GET("/:id/records", h.Records)
}

func ids(c echo.Context) (auth.Identity, uuid.UUID, error) {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return id, uuid.Nil, err
	}
	pid, err := patient.PatientID(c)
	return id, pid, err
}

func shareID(c echo.Context, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid share id")
	}
	return id, nil
}

// -- Patient Handlers --

func (h *Handler) List(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), id.AdminID, pid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", items)
}

func (h *Handler) Create(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sh, err := h.svc.Create(c.Request().Context(), id.AdminID, pid, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusCreated, "Records shared", sh)
}

func (h *Handler) Stats(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), id.AdminID, pid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", st)
}

func (h *Handler) Update(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	sid, err := shareID(c, "shareId")
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sh, err := h.svc.Update(c.Request().Context(), id.AdminID, pid, sid, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Shared access updated", sh)
}

func (h *Handler) Revoke(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	sid, err := shareID(c, "shareId")
	if err != nil {
		return err
	}
	sh, err := h.svc.Revoke(c.Request().Context(), id.AdminID, pid, sid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Shared access revoked", sh)
}

// -- Hospital Handlers --

func (h *Handler) Inbound(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Inbound(c.Request().Context(), id.AdminID, c.QueryParam("status"))
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", items)
}

type transitionFunc func(ctx context.Context, adminID, id uuid.UUID) (*Share, error)

func (h *Handler) transition(c echo.Context, fn transitionFunc, msg string) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	sid, err := shareID(c, "id")
	if err != nil {
		return err
	}
	sh, err := fn(c.Request().Context(), id.AdminID, sid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, msg, sh)
}

func (h *Handler) Accept(c echo.Context) error {
	return h.transition(c, h.svc.Accept, "Shared access accepted")
}

func (h *Handler) Reject(c echo.Context) error {
	return h.transition(c, h.svc.Reject, "Shared access rejected")
}

func (h *Handler) RevokeAsHospital(c echo.Context) error {
	return h.transition(c, h.svc.RevokeAsHospital, "Shared access revoked")
}

func (h *Handler) Records(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	sid, err := shareID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.svc.Records(c.Request().Context(), id.AdminID, sid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", out)
}
