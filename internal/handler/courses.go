package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/csdept/csweb/internal/course"
	"github.com/csdept/csweb/internal/ctxutil"
	domerrors "github.com/csdept/csweb/internal/errors"
)

const courseModule = "course"

const uploadCleanupTimeout = 30 * time.Second

// syllabusField is the multipart field carrying an optional syllabus file.
const syllabusField = "syllabus"

func (h *Handler) listCourses(c *gin.Context) {
	courses, err := h.Courses.ListCourses(c.Request.Context())
	if err != nil {
		h.respondError(c, courseModule, err)
		return
	}
	c.JSON(http.StatusOK, courses)
}

func (h *Handler) listCourseGroups(c *gin.Context) {
	groups, err := h.Courses.ListGroups(c.Request.Context())
	if err != nil {
		h.respondError(c, courseModule, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *Handler) getCourseGroup(c *gin.Context) {
	slug := c.Param("slug")
	group, err := h.Courses.GetGroupBySlug(c.Request.Context(), slug)
	if err != nil {
		h.respondError(c, courseModule, err)
		return
	}
	if group == nil {
		h.respondError(c, courseModule, notFound("course group "+slug))
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *Handler) getCourse(c *gin.Context) {
	identifier := c.Param("identifier")
	res, err := h.Courses.GetCourse(c.Request.Context(), identifier)
	if err != nil {
		h.respondError(c, courseModule, err)
		return
	}
	if res == nil {
		h.respondError(c, courseModule, notFound("course "+identifier))
		return
	}
	c.Header("X-Resolved-By", res.Strategy)
	c.JSON(http.StatusOK, res.Course)
}

// bindCourse reads a course from JSON or from a multipart form whose
// "resources" field holds a JSON array. A syllabus file, when present, is
// stored first and its URL replaces syllabusFile.
func (h *Handler) bindCourse(c *gin.Context) (in course.Input, storedURL string, err error) {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		err = c.ShouldBindBodyWith(&in, binding.JSON)
		return in, "", err
	}

	if err = c.ShouldBindWith(&in, binding.FormMultipart); err != nil {
		return in, "", err
	}
	if raw := strings.TrimSpace(c.PostForm("resources")); raw != "" {
		if err = json.Unmarshal([]byte(raw), &in.Resources); err != nil {
			return in, "", domerrors.NewValidationError("resources", "must be a JSON array")
		}
		if err = binding.Validator.ValidateStruct(&in); err != nil {
			return in, "", err
		}
	}

	fh, ferr := c.FormFile(syllabusField)
	if ferr != nil {
		// No file part.
		return in, "", nil
	}
	f, err := fh.Open()
	if err != nil {
		return in, "", domerrors.NewWrapper(courseModule, "upload_syllabus").Wrap(err, "could not read syllabus file")
	}
	defer f.Close()

	storedURL, err = h.Uploads.Save(c.Request.Context(), fh.Filename, f)
	if err != nil {
		return in, "", err
	}
	in.SyllabusFile = storedURL
	return in, storedURL, nil
}

// syllabusFieldSent reports whether the request named syllabusFile at all,
// as opposed to leaving it out. An empty value clears the syllabus.
func syllabusFieldSent(c *gin.Context) bool {
	if c.ContentType() == binding.MIMEMultipartPOSTForm {
		_, ok := c.GetPostForm("syllabusFile")
		return ok
	}
	raw, ok := c.Get(gin.BodyBytesKey)
	if !ok {
		return false
	}
	body, _ := raw.([]byte)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return false
	}
	_, ok = fields["syllabusFile"]
	return ok
}

// discardUpload removes a file stored for a write that then failed.
func (h *Handler) discardUpload(c *gin.Context, url string) {
	if url == "" {
		return
	}
	// The client may already be gone; cleanup still runs.
	ctx, cancel := context.WithTimeout(ctxutil.PreserveTracing(c.Request.Context()), uploadCleanupTimeout)
	defer cancel()
	if err := h.Uploads.Delete(ctx, url); err != nil {
		slog.WarnContext(ctx, "failed to remove orphaned syllabus", "url", url, "error", err)
	}
}

func (h *Handler) createCourse(c *gin.Context) {
	in, stored, err := h.bindCourse(c)
	if err != nil {
		h.respondError(c, courseModule, err)
		return
	}
	created, err := h.Courses.Create(c.Request.Context(), in)
	if err != nil {
		h.discardUpload(c, stored)
		h.respondError(c, courseModule, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateCourse(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, courseModule, err)
		return
	}
	ctx := c.Request.Context()
	previous, err := h.Courses.CourseByID(ctx, id)
	if err != nil {
		h.respondError(c, courseModule, err)
		return
	}
	if previous == nil {
		h.respondError(c, courseModule, notFound("course"))
		return
	}

	in, stored, err := h.bindCourse(c)
	if err != nil {
		h.respondError(c, courseModule, err)
		return
	}
	if stored == "" && !syllabusFieldSent(c) {
		in.SyllabusFile = previous.SyllabusFile
	}
	updated, err := h.Courses.Update(ctx, id, in)
	if err != nil {
		h.discardUpload(c, stored)
		h.respondError(c, courseModule, err)
		return
	}
	if previous.SyllabusFile != "" && previous.SyllabusFile != updated.SyllabusFile {
		h.discardUpload(c, previous.SyllabusFile)
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteCourse(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, courseModule, err)
		return
	}
	deleted, err := h.Courses.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, courseModule, err)
		return
	}
	h.discardUpload(c, deleted.SyllabusFile)
	c.Status(http.StatusNoContent)
}
