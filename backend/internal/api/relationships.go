package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tami-graph/backend/internal/engine"
)

func (h *Handler) addMention(c *gin.Context) {
	var req engine.MentionRequest
	if !h.bind(c, &req) {
		return
	}
	mention, err := h.engine.AddMention(c.Request.Context(), c.Param("owner"), req)
	if err != nil {
		h.respond(c, "add mention", err)
		return
	}
	c.JSON(http.StatusOK, mention)
}

func (h *Handler) ingestMentions(c *gin.Context) {
	var req struct {
		Mentions []engine.MentionRequest `json:"mentions" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}
	summary, err := h.ingestor.IngestMentions(c.Request.Context(), c.Param("owner"), req.Mentions)
	if err != nil {
		h.respond(c, "ingest mentions", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) createRelationship(c *gin.Context) {
	var req engine.RelationshipRequest
	if !h.bind(c, &req) {
		return
	}
	rel, err := h.engine.CreateRelationship(c.Request.Context(), c.Param("owner"), req)
	if err != nil {
		h.respond(c, "create relationship", err)
		return
	}
	c.JSON(http.StatusOK, rel)
}

func (h *Handler) deleteRelationship(c *gin.Context) {
	err := h.engine.DeleteRelationship(c.Request.Context(), c.Param("owner"), c.Query("from"), c.Query("to"), c.Query("type"))
	if err != nil {
		h.respond(c, "delete relationship", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) inferCollaborations(c *gin.Context) {
	threshold, err := queryInt(c, "threshold")
	if err != nil {
		h.respond(c, "infer collaborations", err)
		return
	}
	n, err := h.engine.InferCollaborations(c.Request.Context(), c.Param("owner"), threshold)
	if err != nil {
		h.respond(c, "infer collaborations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) coOccurrences(c *gin.Context) {
	minShared, err := queryInt(c, "min")
	if err != nil {
		h.respond(c, "co-occurrences", err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.respond(c, "co-occurrences", err)
		return
	}

	pairs, err := h.engine.CoOccurrences(c.Request.Context(), c.Param("owner"), minShared, limit)
	if err != nil {
		h.respond(c, "co-occurrences", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pairs": pairs, "count": len(pairs)})
}
