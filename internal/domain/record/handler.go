package record

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medilocker/medilocker/internal/domain/patient"
	"github.com/medilocker/medilocker/internal/platform/auth"
	"github.com/medilocker/medilocker/internal/platform/validate"
	"github.com/medilocker/medilocker/pkg/envelope"
	"github.com/medilocker/medilocker/pkg/pagination"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, v auth.AccessVerifier) {
	g := api.Group("/patients/:id/records", auth.JWTMiddleware(v), auth.RequireUserType(auth.UserTypePatient))
	g.GET("", h.List)
	g.POST("", h.Upload)
	g.GET("/export", h.Export)
	g.GET("/:recordId", h.Get)
	g.PUT("/:recordId", h.Update)
	g.DELETE("/:recordId", h.Delete)
}

func ids(c echo.Context) (auth.Identity, uuid.UUID, error) {
	id, err := auth.MustIdentity(c)
	if err != nil {
		return auth.Identity{}, uuid.Nil, err
	}
	pid, err := patient.PatientID(c)
	if err != nil {
		return auth.Identity{}, uuid.Nil, err
	}
	return id, pid, nil
}

func recordID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("recordId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	return id, nil
}

func filterFromQuery(c echo.Context) (Filter, error) {
	var v validate.Errors
	f := Filter{
		StartDate: v.Date("startDate", c.QueryParam("startDate")),
		EndDate:   v.Date("endDate", c.QueryParam("endDate")),
		Search:    c.QueryParam("search"),
		Category:  c.QueryParam("category"),
	}
	if raw := c.QueryParam("isCritical"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			v.Add("isCritical", "must be true or false")
		} else {
			f.IsCritical = &b
		}
	}
	return f, v.Err()
}

func (h *Handler) List(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), id.AdminID, pid, f, pg)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", pagination.NewResponse(items, total, pg))
}

func (h *Handler) Upload(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	critical, _ := strconv.ParseBool(c.FormValue("isCritical"))
	meta := Metadata{
		Category:      c.FormValue("category"),
		Title:         c.FormValue("title"),
		Description:   c.FormValue("description"),
		RecordDate:    c.FormValue("recordDate"),
		PhysicianName: c.FormValue("physicianName"),
		FacilityName:  c.FormValue("facilityName"),
		IsCritical:    critical,
	}

	var file *File
	if fh, err := c.FormFile("file"); err == nil {
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
		}
		defer src.Close()
		body, contentType, err := sniff(src, fh.Header.Get(echo.HeaderContentType))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
		}
		file = &File{Name: fh.Filename, ContentType: contentType, Size: fh.Size, Body: body}
	}

	rec, err := h.svc.Upload(c.Request().Context(), id.AdminID, pid, meta, file)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusCreated, "Medical record uploaded", rec)
}

// sniff detects the content type when the client sent none or a generic
// one, and returns a reader that still yields the full body.
func sniff(r io.Reader, declared string) (io.Reader, string, error) {
	if declared != "" && declared != "application/octet-stream" {
		return r, declared, nil
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, "", err
	}
	head = head[:n]
	return io.MultiReader(bytes.NewReader(head), r), http.DetectContentType(head), nil
}

func (h *Handler) Get(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	rid, err := recordID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Get(c.Request().Context(), id.AdminID, pid, rid)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "", rec)
}

func (h *Handler) Update(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	rid, err := recordID(c)
	if err != nil {
		return err
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, err := h.svc.Update(c.Request().Context(), id.AdminID, pid, rid, in)
	if err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Medical record updated", rec)
}

func (h *Handler) Delete(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	rid, err := recordID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), id.AdminID, pid, rid); err != nil {
		return err
	}
	return envelope.OK(c, http.StatusOK, "Medical record deleted", nil)
}

func (h *Handler) Export(c echo.Context) error {
	id, pid, err := ids(c)
	if err != nil {
		return err
	}
	data, err := h.svc.Export(c.Request().Context(), id.AdminID, pid)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("medical-records-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}
