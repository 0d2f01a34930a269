// Package api exposes the knowledge graph engine over HTTP. Every route is
// scoped to the owner in its path.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tami-graph/backend/internal/engine"
	"tami-graph/backend/pkg/logger"
)

// Handler serves the HTTP routes
type Handler struct {
	engine   *engine.Engine
	ingestor *engine.Ingestor
	logger   *zap.Logger
}

// NewHandler creates a handler over the engine. ingestor may be nil, in which
// case transcript ingestion reports a configuration error.
func NewHandler(eng *engine.Engine, ingestor *engine.Ingestor) *Handler {
	if ingestor == nil {
		ingestor = engine.NewIngestor(eng, nil)
	}
	return &Handler{
		engine:   eng,
		ingestor: ingestor,
		logger:   logger.Named("api"),
	}
}

// NewRouter builds the gin engine with logging, recovery and CORS middleware
func NewRouter(h *Handler, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(cors())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	users := router.Group("/api/users/:owner")
	{
		entities := users.Group("/entities")
		entities.POST("", h.upsertEntity)
		entities.GET("", h.listEntities)
		entities.GET("/grouped", h.listGrouped)
		entities.GET("/stats", h.entityStats)
		entities.GET("/search", h.searchEntities)
		entities.GET("/duplicates", h.duplicateCandidates)
		entities.GET("/:id", h.getEntity)
		entities.PATCH("/:id", h.updateEntity)
		entities.DELETE("/:id", h.deleteEntity)
		entities.GET("/:id/relationships", h.entityRelationships)
		entities.GET("/:id/graph", h.entityGraph)

		users.GET("/connections", h.findConnections)

		users.POST("/mentions", h.addMention)
		users.POST("/mentions/batch", h.ingestMentions)

		users.POST("/relationships", h.createRelationship)
		users.DELETE("/relationships", h.deleteRelationship)
		users.POST("/relationships/infer", h.inferCollaborations)
		users.GET("/co-occurrences", h.coOccurrences)

		users.POST("/merge", h.mergeEntities)

		users.POST("/meetings", h.createMeeting)
		users.GET("/meetings/:id", h.getMeeting)
		users.PATCH("/meetings/:id/status", h.updateMeetingStatus)
		users.POST("/meetings/:id/transcript", h.ingestTranscript)

		users.POST("/action-items", h.createActionItem)
		users.POST("/action-items/:id/assign", h.assignActionItem)
	}

	return router
}

// ginLogger logs every request once it has been served
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
