package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/csdept/csweb/internal/calendar"
	"github.com/csdept/csweb/internal/compexam"
	"github.com/csdept/csweb/internal/event"
)

const (
	eventModule    = "event"
	compExamModule = "compexam"
	calendarModule = "calendar"
)

// listEvents returns upcoming events unless ?all=true.
func (h *Handler) listEvents(c *gin.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))
	var (
		events []event.Event
		err    error
	)
	if all {
		events, err = h.Events.List(c.Request.Context())
	} else {
		events, err = h.Events.Upcoming(c.Request.Context())
	}
	if err != nil {
		h.respondError(c, eventModule, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) getEvent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, eventModule, err)
		return
	}
	ev, err := h.Events.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, eventModule, err)
		return
	}
	if ev == nil {
		h.respondError(c, eventModule, notFound("event"))
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) createEvent(c *gin.Context) {
	var in event.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, eventModule, err)
		return
	}
	ev, err := h.Events.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, eventModule, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (h *Handler) updateEvent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, eventModule, err)
		return
	}
	var in event.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, eventModule, err)
		return
	}
	ev, err := h.Events.Update(c.Request.Context(), id, in)
	if err != nil {
		h.respondError(c, eventModule, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) deleteEvent(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, eventModule, err)
		return
	}
	if err := h.Events.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, eventModule, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// getCompExam returns null before the settings are first saved.
func (h *Handler) getCompExam(c *gin.Context) {
	settings, err := h.CompExam.Get(c.Request.Context())
	if err != nil {
		h.respondError(c, compExamModule, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) saveCompExam(c *gin.Context) {
	var in compexam.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, compExamModule, err)
		return
	}
	settings, err := h.CompExam.Save(c.Request.Context(), in, actor(c))
	if err != nil {
		h.respondError(c, compExamModule, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// getCalendar returns an empty calendar for unknown semesters so the page
// can render without special cases.
func (h *Handler) getCalendar(c *gin.Context) {
	semester := c.Param("semester")
	cal, err := h.Calendar.Get(c.Request.Context(), semester)
	if err != nil {
		h.respondError(c, calendarModule, err)
		return
	}
	if cal == nil {
		cal = &calendar.Calendar{Semester: semester, NoSchoolDays: []calendar.NoSchoolDay{}}
	}
	c.JSON(http.StatusOK, cal)
}

func (h *Handler) saveCalendar(c *gin.Context) {
	var in calendar.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, calendarModule, err)
		return
	}
	cal, err := h.Calendar.Save(c.Request.Context(), c.Param("semester"), in)
	if err != nil {
		h.respondError(c, calendarModule, err)
		return
	}
	c.JSON(http.StatusOK, cal)
}

func (h *Handler) addNoSchoolDay(c *gin.Context) {
	var in calendar.DayInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.respondError(c, calendarModule, err)
		return
	}
	day, err := h.Calendar.AddDay(c.Request.Context(), c.Param("semester"), in)
	if err != nil {
		h.respondError(c, calendarModule, err)
		return
	}
	c.JSON(http.StatusCreated, day)
}

func (h *Handler) deleteNoSchoolDay(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, calendarModule, err)
		return
	}
	if err := h.Calendar.DeleteDay(c.Request.Context(), id); err != nil {
		h.respondError(c, calendarModule, err)
		return
	}
	c.Status(http.StatusNoContent)
}
