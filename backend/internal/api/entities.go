package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tami-graph/backend/internal/engine"
	"tami-graph/backend/internal/graph"
)

func (h *Handler) upsertEntity(c *gin.Context) {
	var req engine.EntityRequest
	if !h.bind(c, &req) {
		return
	}
	entity, err := h.engine.UpsertEntity(c.Request.Context(), c.Param("owner"), req)
	if err != nil {
		h.respond(c, "upsert entity", err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (h *Handler) listEntities(c *gin.Context) {
	offset, err := queryInt(c, "offset")
	if err != nil {
		h.respond(c, "list entities", err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.respond(c, "list entities", err)
		return
	}

	entities, err := h.engine.ListEntities(c.Request.Context(), c.Param("owner"), c.Query("type"), offset, limit)
	if err != nil {
		h.respond(c, "list entities", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entities": entities, "count": len(entities)})
}

func (h *Handler) listGrouped(c *gin.Context) {
	offset, err := queryInt(c, "offset")
	if err != nil {
		h.respond(c, "list grouped", err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.respond(c, "list grouped", err)
		return
	}

	groups, err := h.engine.ListGrouped(c.Request.Context(), c.Param("owner"), offset, limit)
	if err != nil {
		h.respond(c, "list grouped", err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *Handler) entityStats(c *gin.Context) {
	stats, err := h.engine.EntityStats(c.Request.Context(), c.Param("owner"))
	if err != nil {
		h.respond(c, "entity stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) searchEntities(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.respond(c, "search entities", err)
		return
	}

	hits, err := h.engine.SearchEntities(c.Request.Context(), c.Param("owner"), c.Query("q"), queryList(c, "types"), limit)
	if err != nil {
		h.respond(c, "search entities", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": hits, "count": len(hits)})
}

func (h *Handler) duplicateCandidates(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.respond(c, "duplicate candidates", err)
		return
	}

	candidates, err := h.engine.DuplicateCandidates(c.Request.Context(), c.Param("owner"), c.Query("type"), limit)
	if err != nil {
		h.respond(c, "duplicate candidates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates, "count": len(candidates)})
}

func (h *Handler) getEntity(c *gin.Context) {
	detail, err := h.engine.GetEntity(c.Request.Context(), c.Param("owner"), c.Param("id"))
	if err != nil {
		h.respond(c, "get entity", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *Handler) updateEntity(c *gin.Context) {
	var req struct {
		graph.EntityUpdate
		Language string `json:"language"`
	}
	if !h.bind(c, &req) {
		return
	}

	entity, err := h.engine.UpdateEntity(c.Request.Context(), c.Param("owner"), c.Param("id"), req.EntityUpdate, req.Language)
	if err != nil {
		h.respond(c, "update entity", err)
		return
	}
	c.JSON(http.StatusOK, entity)
}

func (h *Handler) deleteEntity(c *gin.Context) {
	if err := h.engine.DeleteEntity(c.Request.Context(), c.Param("owner"), c.Param("id")); err != nil {
		h.respond(c, "delete entity", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) entityRelationships(c *gin.Context) {
	rels, err := h.engine.EntityRelationships(c.Request.Context(), c.Param("owner"), c.Param("id"), c.Query("direction"))
	if err != nil {
		h.respond(c, "entity relationships", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relationships": rels, "count": len(rels)})
}

func (h *Handler) entityGraph(c *gin.Context) {
	depth, err := queryInt(c, "depth")
	if err != nil {
		h.respond(c, "entity graph", err)
		return
	}

	sg, err := h.engine.EntityGraph(c.Request.Context(), c.Param("owner"), c.Param("id"), depth)
	if err != nil {
		h.respond(c, "entity graph", err)
		return
	}
	c.JSON(http.StatusOK, sg)
}

func (h *Handler) findConnections(c *gin.Context) {
	maxHops, err := queryInt(c, "max_hops")
	if err != nil {
		h.respond(c, "find connections", err)
		return
	}

	paths, err := h.engine.FindConnections(c.Request.Context(), c.Param("owner"), c.Query("from"), c.Query("to"), maxHops)
	if err != nil {
		h.respond(c, "find connections", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paths": paths, "count": len(paths)})
}

func (h *Handler) mergeEntities(c *gin.Context) {
	var req struct {
		KeepID  string `json:"keep_id" binding:"required"`
		MergeID string `json:"merge_id" binding:"required"`
	}
	if !h.bind(c, &req) {
		return
	}

	merged, err := h.engine.MergeEntities(c.Request.Context(), c.Param("owner"), req.KeepID, req.MergeID)
	if err != nil {
		h.respond(c, "merge entities", err)
		return
	}
	c.JSON(http.StatusOK, merged)
}
