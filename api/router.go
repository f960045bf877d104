package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

func NewRouter(handler *RoomHandler, log *slog.Logger, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(log), cors(allowedOrigins))

	rooms := router.Group("/meet/room")
	{
		rooms.POST("/create", handler.CreateRoom)
		rooms.GET("/:room_id", handler.GetRoom)
		rooms.POST("/:room_id/join", handler.JoinRoom)
		rooms.POST("/:room_id/leave", handler.LeaveRoom)
		rooms.POST("/:room_id/end", handler.EndRoom)
		rooms.POST("/:room_id/verify-password", handler.VerifyPassword)
		rooms.GET("/:room_id/participants", handler.ListParticipants)
	}
	router.GET("/meet/rooms/active", handler.ListActiveRooms)

	return router
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request handled",
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// cors mirrors the permissive browser-embed policy of the upstream app: the
// frontend iframes the provider, so preflighted cross-origin calls are normal.
func cors(allowedOrigins []string) gin.HandlerFunc {
	// Origins usually come from a comma-separated env value; stray whitespace
	// around an entry must not break the exact match below.
	allowed := lo.Map(allowedOrigins, func(origin string, _ int) string { return strings.TrimSpace(origin) })
	allowAll := lo.Contains(allowed, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || lo.Contains(allowed, origin)) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
