package hospital

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medilocker/medilocker/internal/platform/auth"
	"github.com/medilocker/medilocker/internal/platform/geo"
	"github.com/medilocker/medilocker/pkg/envelope"
	"github.com/medilocker/medilocker/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, v auth.AccessVerifier) {
	// Directory – public, identity attached when present
	api.GET("/hospitals", h.List, auth.OptionalJWT(v))
	api.GET("/hospitals/:id", h.Get, auth.OptionalJWT(v))

	// Own profile – hospital accounts
	own := api.Group("/hospital", auth.JWTMiddleware(v), auth.RequireUserType(auth.UserTypeHospital))
	own.GET("/profile", h.GetProfile)
	own.PUT("/profile", h.UpdateProfile)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		City:   c.QueryParam("city"),
		Type:   c.QueryParam("type"),
		Search: c.QueryParam("search"),
	}
	if raw := c.QueryParam("verified"); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid verified")
		}
		f.Verified = &verified
	}

	near, err := nearFromQuery(c)
	if err != nil {
		return err
	}

	items, total, err := h.svc.Search(c.Request().Context(), f, near, pg)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", pagination.NewResponse(items, total, pg))
}

// nearFromQuery reads latitude, longitude and radius. Both coordinates are
// needed for a distance search; a lone one is ignored.
func nearFromQuery(c echo.Context) (*Near, error) {
	latRaw, lngRaw := c.QueryParam("latitude"), c.QueryParam("longitude")
	if latRaw == "" || lngRaw == "" {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid latitude")
	}
	lng, err := strconv.ParseFloat(lngRaw, 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid longitude")
	}
	near := &Near{Origin: geo.Point{Lat: lat, Lng: lng}, RadiusKm: DefaultRadiusKm}
	if raw := c.QueryParam("radius"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid radius")
		}
		near.RadiusKm = r
	}
	return near, nil
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	hosp, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", hosp)
}

func (h *Handler) GetProfile(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	hosp, err := h.svc.EnsureProfile(c.Request().Context(), id.AdminID, "", id.Email)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", hosp)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}
	var in ProfileInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	hosp, err := h.svc.UpsertProfile(c.Request().Context(), id.AdminID, id.Email, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Hospital profile updated", hosp)
}
