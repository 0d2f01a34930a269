package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tami-graph/backend/internal/engine"
)

func (h *Handler) createMeeting(c *gin.Context) {
	var req engine.MeetingRequest
	if !h.bind(c, &req) {
		return
	}
	meeting, err := h.engine.CreateMeeting(c.Request.Context(), c.Param("owner"), req)
	if err != nil {
		h.respond(c, "create meeting", err)
		return
	}
	c.JSON(http.StatusOK, meeting)
}

func (h *Handler) getMeeting(c *gin.Context) {
	meeting, err := h.engine.GetMeeting(c.Request.Context(), c.Param("owner"), c.Param("id"))
	if err != nil {
		h.respond(c, "get meeting", err)
		return
	}
	c.JSON(http.StatusOK, meeting)
}

func (h *Handler) updateMeetingStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	meeting, err := h.engine.UpdateMeetingStatus(c.Request.Context(), c.Param("owner"), c.Param("id"), req.Status)
	if err != nil {
		h.respond(c, "update meeting status", err)
		return
	}
	c.JSON(http.StatusOK, meeting)
}

func (h *Handler) ingestTranscript(c *gin.Context) {
	var req engine.TranscriptRequest
	if !h.bind(c, &req) {
		return
	}
	req.MeetingID = c.Param("id")

	summary, err := h.ingestor.IngestTranscript(c.Request.Context(), c.Param("owner"), req)
	if err != nil {
		h.respond(c, "ingest transcript", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) createActionItem(c *gin.Context) {
	var req engine.ActionItemRequest
	if !h.bind(c, &req) {
		return
	}
	item, err := h.engine.CreateActionItem(c.Request.Context(), c.Param("owner"), req)
	if err != nil {
		h.respond(c, "create action item", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) assignActionItem(c *gin.Context) {
	var req struct {
		Assignee string `json:"assignee" binding:"required"`
		Language string `json:"language"`
	}
	if !h.bind(c, &req) {
		return
	}
	item, err := h.engine.AssignActionItem(c.Request.Context(), c.Param("owner"), c.Param("id"), req.Assignee, req.Language)
	if err != nil {
		h.respond(c, "assign action item", err)
		return
	}
	c.JSON(http.StatusOK, item)
}
