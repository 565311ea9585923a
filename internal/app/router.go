package app

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	river "github.com/riverqueue/river"

	"sempervigil.dev/sempervigil/internal/admin"
	"sempervigil.dev/sempervigil/internal/api/middleware"
	"sempervigil.dev/sempervigil/internal/config"
	"sempervigil.dev/sempervigil/internal/domain"
	apperrors "sempervigil.dev/sempervigil/internal/pkg/errors"
	"sempervigil.dev/sempervigil/internal/pkg/logger"
)

// publicPrefixes lists routes that do not require a bearer token.
var publicPrefixes = []string{"/healthz"}

// newRouter wires the admin command API (spec.md §6) as a thin Gin layer
// over internal/admin.Commands. It carries no business logic of its own:
// every handler decodes the request, calls one Commands method, and
// reports the result.
func newRouter(cfg *config.Config, cmds *admin.Commands, jwtCfg middleware.JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	router.Use(cors.New(buildCORSConfig(cfg)))
	router.Use(jwtSkipPublic(jwtCfg))

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := router.Group("/api/v1")
	{
		v1.POST("/jobs", enqueueJobHandler(cmds))
		v1.GET("/jobs", listJobsHandler(cmds))
		v1.POST("/jobs/:id/cancel", cancelJobHandler(cmds))
		v1.POST("/jobs/cancel-all", cancelAllHandler(cmds))

		v1.PUT("/sources/:id", upsertSourceHandler(cmds))
		v1.POST("/sources/:id/test", testSourceHandler(cmds))

		v1.PATCH("/runtime-config", patchRuntimeConfigHandler(cmds))

		v1.POST("/cve-sync", runCVESyncHandler(cmds))
		v1.POST("/events/rebuild", rebuildEventsHandler(cmds))
		v1.POST("/events/purge", purgeEventsHandler(cmds))

		v1.DELETE("/content/:type", clearContentHandler(cmds))
	}

	router.Any("/log/level", gin.WrapH(logger.HTTPHandler()))

	return router
}

func buildCORSConfig(cfg *config.Config) cors.Config {
	allowedOrigins := sanitizeAllowedOrigins(cfg.Server.AllowedOrigins)

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: cfg.Server.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Server.UnsafeAllowAllOrigins {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
		return corsCfg
	}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}
	corsCfg.AllowOrigins = allowedOrigins
	return corsCfg
}

func sanitizeAllowedOrigins(origins []string) []string {
	cleaned := make([]string, 0, len(origins))
	seen := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" || origin == "*" {
			continue
		}
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		cleaned = append(cleaned, origin)
	}
	return cleaned
}

// jwtSkipPublic applies JWT auth to everything except publicPrefixes.
func jwtSkipPublic(jwtCfg middleware.JWTConfig) gin.HandlerFunc {
	jwtMw := middleware.JWTAuthWithConfig(jwtCfg)
	return func(c *gin.Context) {
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		jwtMw(c)
	}
}

type enqueueJobRequest struct {
	JobType string          `json:"job_type" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

func enqueueJobHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req enqueueJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(badRequest(err))
			return
		}
		job, err := cmds.EnqueueJob(c.Request.Context(), req.JobType, req.Payload)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, job)
	}
}

func listJobsHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts := admin.ListJobsOptions{Kind: c.Query("kind")}
		if limitParam := c.Query("limit"); limitParam != "" {
			if limit, err := strconv.Atoi(limitParam); err == nil {
				opts.Limit = limit
			}
		}
		if state := c.Query("state"); state != "" {
			opts.States = []river.JobState{river.JobState(state)}
		}
		jobs, err := cmds.ListJobs(c.Request.Context(), opts)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobs": jobs})
	}
}

func cancelJobHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.Error(badRequest(err))
			return
		}
		job, err := cmds.CancelJob(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func cancelAllHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := cmds.CancelAll(c.Request.Context())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"canceled": count})
	}
}

func upsertSourceHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		var source domain.Source
		if err := c.ShouldBindJSON(&source); err != nil {
			c.Error(badRequest(err))
			return
		}
		source.ID = c.Param("id")
		if err := cmds.UpsertSource(c.Request.Context(), &source); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, source)
	}
}

func testSourceHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := cmds.TestSource(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func patchRuntimeConfigHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch admin.RuntimeConfigPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.Error(badRequest(err))
			return
		}
		cfg, err := cmds.PatchRuntimeConfig(c.Request.Context(), patch)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

type sinceRequest struct {
	Since time.Time `json:"since"`
}

func runCVESyncHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sinceRequest
		_ = c.ShouldBindJSON(&req)
		result, err := cmds.RunCVESyncNow(c.Request.Context(), req.Since)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func rebuildEventsHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sinceRequest
		_ = c.ShouldBindJSON(&req)
		result, err := cmds.RebuildEvents(c.Request.Context(), req.Since)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func purgeEventsHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			MaxSeverity domain.Severity `json:"max_severity"`
		}
		_ = c.ShouldBindJSON(&req)
		if req.MaxSeverity == "" {
			req.MaxSeverity = domain.SeverityHigh
		}
		result, err := cmds.PurgeEvents(c.Request.Context(), req.MaxSeverity)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func clearContentHandler(cmds *admin.Commands) gin.HandlerFunc {
	return func(c *gin.Context) {
		removed, err := cmds.ClearContentByType(c.Param("type"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	}
}

func badRequest(err error) error {
	return apperrors.Wrap(err, apperrors.KindValidation, apperrors.CodeInvalidRequestField, "invalid request body")
}
