package account

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medilocker/medilocker/internal/platform/apperror"
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
	g := api.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/forgot-password", h.ForgotPassword)
	g.POST("/reset-password", h.ResetPassword)
	g.POST("/verify-email", h.VerifyEmail)

	requireAuth := auth.JWTMiddleware(v)
	g.GET("/me", h.Me, requireAuth)
	g.POST("/emergency-pin", h.SetEmergencyPIN, requireAuth)
	g.POST("/emergency-pin/verify", h.VerifyEmergencyPIN, requireAuth)
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusCreated, "Registration successful", sess)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Login successful", sess)
}

func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refreshToken is required")
	}
	sess, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Token refreshed", sess)
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "If that email is registered, a reset link has been sent", nil)
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ResetPassword(c.Request().Context(), req); err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Password has been reset", nil)
}

func (h *Handler) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.VerifyEmail(c.Request().Context(), req.Token); err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Email verified", nil)
}

func (h *Handler) Me(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	a, err := h.svc.Me(c.Request().Context(), id.AdminID)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", a)
}

func (h *Handler) SetEmergencyPIN(c echo.Context) error {
	return apperror.NotImplemented("emergency PIN setup is not available")
}

func (h *Handler) VerifyEmergencyPIN(c echo.Context) error {
	return apperror.NotImplemented("emergency PIN verification is not available")
}
