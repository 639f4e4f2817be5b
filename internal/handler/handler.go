// Package handler exposes the site's models as a JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/csdept/csweb/internal/admin"
	"github.com/csdept/csweb/internal/auth"
	"github.com/csdept/csweb/internal/calendar"
	"github.com/csdept/csweb/internal/compexam"
	"github.com/csdept/csweb/internal/course"
	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/event"
	"github.com/csdept/csweb/internal/faculty"
	"github.com/csdept/csweb/internal/sentry"
	"github.com/csdept/csweb/internal/upload"
)

// ErrorRecorder counts error responses.
type ErrorRecorder interface {
	RecordHTTPError(errorType, module string)
}

// Deps are the collaborators a Handler serves.
type Deps struct {
	Courses  *course.Store
	Events   *event.Store
	CompExam *compexam.Store
	Calendar *calendar.Store
	Faculty  *faculty.Store
	Admins   *admin.Store
	Uploads  upload.Store
	Metrics  ErrorRecorder
}

// Handler serves the /api routes.
type Handler struct {
	Deps
}

// New creates a handler and registers the custom binding rules.
func New(d Deps) *Handler {
	RegisterValidators()
	return &Handler{Deps: d}
}

var registerOnce sync.Once

// RegisterValidators adds the "coursecode" rule to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			slog.Warn("gin validator engine is not validator/v10; coursecode rule not registered")
			return
		}
		if err := v.RegisterValidation("coursecode", func(fl validator.FieldLevel) bool {
			return course.ValidCode(fl.Field().String())
		}); err != nil {
			slog.Error("failed to register coursecode validation", "error", err)
		}
	})
}

// Register mounts every route. The admin handlers run, in order, in front
// of every admin route.
func (h *Handler) Register(r gin.IRouter, admin ...gin.HandlerFunc) {
	api := r.Group("/api")
	api.GET("/me", h.me)

	api.GET("/courses", h.listCourses)
	api.GET("/courses/groups", h.listCourseGroups)
	api.GET("/courses/group/:slug", h.getCourseGroup)
	api.GET("/courses/:identifier", h.getCourse)

	api.GET("/events", h.listEvents)
	api.GET("/events/:id", h.getEvent)
	api.GET("/comp-exam", h.getCompExam)
	api.GET("/calendar/:semester", h.getCalendar)
	api.GET("/faculty", h.listFaculty)

	r.GET(strings.TrimSuffix(upload.URLPrefix, "/")+"/:name", h.serveUpload)

	adm := api.Group("", admin...)
	adm.POST("/courses", h.createCourse)
	adm.PUT("/courses/:id", h.updateCourse)
	adm.DELETE("/courses/:id", h.deleteCourse)

	adm.POST("/events", h.createEvent)
	adm.PUT("/events/:id", h.updateEvent)
	adm.DELETE("/events/:id", h.deleteEvent)

	adm.PUT("/comp-exam", h.saveCompExam)

	adm.PUT("/calendar/:semester", h.saveCalendar)
	adm.POST("/calendar/:semester/days", h.addNoSchoolDay)
	adm.DELETE("/calendar/days/:id", h.deleteNoSchoolDay)

	adm.GET("/admin/faculty", h.listAllFaculty)
	adm.GET("/admin/faculty/semesters", h.listFacultySemesters)
	adm.POST("/faculty", h.createFaculty)
	adm.PUT("/faculty/:id", h.updateFaculty)
	adm.DELETE("/faculty/:id", h.deleteFaculty)
	adm.PUT("/faculty/semesters/:semester", h.publishFacultySemester)

	adm.GET("/admin/whitelist", h.listWhitelist)
	adm.POST("/admin/whitelist", h.addWhitelist)
	adm.DELETE("/admin/whitelist/:email", h.removeWhitelist)
}

func (h *Handler) me(c *gin.Context) {
	user, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"email": nil, "isAdmin": false})
		return
	}
	c.JSON(http.StatusOK, user)
}

// fieldError is one failed binding rule.
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// respondError maps err to a status and a client-safe body.
func (h *Handler) respondError(c *gin.Context, module string, err error) {
	status, errorType := classify(err)

	body := gin.H{"error": http.StatusText(status)}
	var verrs validator.ValidationErrors
	var verr *domerrors.ValidationError
	switch {
	case errors.As(err, &verrs):
		fields := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
		body["error"] = "validation failed"
		body["fields"] = fields
	case errors.As(err, &verr):
		body["error"] = verr.Error()
		body["fields"] = []fieldError{{Field: verr.Field, Rule: verr.Message}}
	default:
		body["error"] = domerrors.GetUserMessage(err, clientMessage(err, status))
	}

	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", "module", module, "path", c.FullPath(), "error", err)
		sentry.CaptureExceptionWithContext(ctx, err)
	} else {
		slog.DebugContext(ctx, "request rejected", "module", module, "status", status, "error", err)
	}
	if h.Metrics != nil {
		h.Metrics.RecordHTTPError(errorType, module)
	}
	c.AbortWithStatusJSON(status, body)
}

func classify(err error) (int, string) {
	var verrs validator.ValidationErrors
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &verrs), errors.As(err, &syntaxErr), errors.As(err, &typeErr),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), domerrors.IsInvalidInput(err):
		return http.StatusBadRequest, "invalid_input"
	case domerrors.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case domerrors.IsConflict(err):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domerrors.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, upload.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func clientMessage(err error, status int) string {
	switch {
	case domerrors.IsConflict(err), domerrors.IsNotFound(err):
		return err.Error()
	case status == http.StatusBadRequest:
		return "malformed request body"
	default:
		return http.StatusText(status)
	}
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domerrors.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", domerrors.ErrNotFound, what)
}

// actor returns the caller's email for audit columns.
func actor(c *gin.Context) string {
	if u, ok := auth.CurrentUser(c); ok {
		return u.Email
	}
	return ""
}
