package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domerrors "github.com/csdept/csweb/internal/errors"
	"github.com/csdept/csweb/internal/faculty"
)

const (
	facultyModule = "faculty"
	adminModule   = "admin"
)

// directory is a semester's faculty listing.
type directory struct {
	Semester string           `json:"semester"`
	Members  []faculty.Member `json:"members"`
}

// listFaculty serves the published directory. Without ?semester it picks
// the most recently updated published semester.
func (h *Handler) listFaculty(c *gin.Context) {
	ctx := c.Request.Context()
	semester := strings.TrimSpace(c.Query("semester"))
	if semester == "" {
		semesters, err := h.Faculty.Semesters(ctx)
		if err != nil {
			h.respondError(c, facultyModule, err)
			return
		}
		for _, s := range semesters {
			if s.Published {
				semester = s.Semester
				break
			}
		}
	}
	if semester == "" {
		c.JSON(http.StatusOK, directory{Members: []faculty.Member{}})
		return
	}

	members, err := h.Faculty.ListPublished(ctx, semester)
	if err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	c.JSON(http.StatusOK, directory{Semester: semester, Members: members})
}

// listAllFaculty is the admin view, including unpublished semesters.
func (h *Handler) listAllFaculty(c *gin.Context) {
	semester := strings.TrimSpace(c.Query("semester"))
	if semester == "" {
		h.respondError(c, facultyModule, domerrors.NewValidationError("semester", "is required"))
		return
	}
	members, err := h.Faculty.List(c.Request.Context(), semester)
	if err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	c.JSON(http.StatusOK, directory{Semester: semester, Members: members})
}

func (h *Handler) listFacultySemesters(c *gin.Context) {
	semesters, err := h.Faculty.Semesters(c.Request.Context())
	if err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	c.JSON(http.StatusOK, semesters)
}

func (h *Handler) createFaculty(c *gin.Context) {
	var in faculty.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	m, err := h.Faculty.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) updateFaculty(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	var in faculty.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	m, err := h.Faculty.Update(c.Request.Context(), id, in)
	if err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) deleteFaculty(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	if err := h.Faculty.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type publishRequest struct {
	Published *bool `json:"published" binding:"required"`
}

func (h *Handler) publishFacultySemester(c *gin.Context) {
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	sem, err := h.Faculty.SetPublished(c.Request.Context(), c.Param("semester"), *req.Published)
	if err != nil {
		h.respondError(c, facultyModule, err)
		return
	}
	c.JSON(http.StatusOK, sem)
}

func (h *Handler) listWhitelist(c *gin.Context) {
	entries, err := h.Admins.Whitelist(c.Request.Context())
	if err != nil {
		h.respondError(c, adminModule, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

type whitelistRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) addWhitelist(c *gin.Context) {
	var req whitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, adminModule, err)
		return
	}
	entry, err := h.Admins.AddToWhitelist(c.Request.Context(), req.Email, actor(c))
	if err != nil {
		h.respondError(c, adminModule, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) removeWhitelist(c *gin.Context) {
	if err := h.Admins.RemoveFromWhitelist(c.Request.Context(), c.Param("email")); err != nil {
		h.respondError(c, adminModule, err)
		return
	}
	c.Status(http.StatusNoContent)
}
