// Package httpapi exposes the attendance services over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"studentattendance/internal/access"
	"studentattendance/internal/attendance"
	"studentattendance/internal/auth"
	"studentattendance/internal/course"
	"studentattendance/internal/dashboard"
	"studentattendance/internal/httpmiddleware"
	"studentattendance/internal/identity"
	"studentattendance/internal/media"
	"studentattendance/internal/metrics"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) bool

// Deps is everything the HTTP layer needs.
type Deps struct {
	Log        logrus.FieldLogger
	Tokens     *auth.Tokens
	Identity   *identity.Service
	Courses    *course.Service
	Attendance *attendance.Service
	Dashboard  *dashboard.Service
	Images     media.Uploader

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Limiter  httpmiddleware.Limiter

	CORSOrigins []string
	Checks      map[string]Check
}

type api struct {
	Deps
}

// NewServer builds the gin engine with middleware and all routes mounted.
func NewServer(d Deps) *gin.Engine {
	setupValidator()
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	a := &api{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(d.Log, func(c *gin.Context) string { return auth.CallerFrom(c).ID }))
	if d.Metrics != nil {
		r.Use(httpmiddleware.Metrics(d.Metrics))
	}
	r.Use(cors.New(corsConfig(d.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	if d.Limiter != nil {
		r.Use(httpmiddleware.RateLimit(d.Limiter, d.Log))
	}

	r.GET("/healthz", a.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))

	authenticated := auth.Authenticate(d.Tokens, d.Identity.Resolve)
	staff := auth.RequireRole(access.Lecturer, access.Admin)

	ag := r.Group("/auth")
	{
		ag.POST("/register", a.register)
		ag.POST("/login", a.login)
		ag.POST("/verify-email", a.verifyEmail)
		ag.POST("/resend-verification", a.resendVerification)
		ag.POST("/forgot-password", a.forgotPassword)
		ag.POST("/reset-password", a.resetPassword)
		ag.POST("/refresh", a.refresh)
		ag.GET("/me", authenticated, a.me)
	}

	ug := r.Group("/users", authenticated)
	{
		ug.GET("", auth.RequireRole(access.Admin), a.listUsers)
		ug.GET("/:id", a.getUser)
		ug.PUT("/:id", a.updateUser)
		ug.PATCH("/:id/status", auth.RequireRole(access.Admin), a.setUserStatus)
	}

	cg := r.Group("/courses", authenticated)
	{
		cg.POST("", staff, a.createCourse)
		cg.GET("", a.listCourses)
		cg.GET("/:id", a.getCourse)
		cg.PUT("/:id", staff, a.updateCourse)
		cg.POST("/:id/enroll", auth.RequireRole(access.Student), a.enroll)
		cg.GET("/:id/students", staff, a.courseStudents)
	}

	sg := r.Group("/attendance", authenticated)
	{
		sg.POST("/sessions", staff, a.createSession)
		sg.GET("/sessions", a.listSessions)
		sg.GET("/sessions/:id", a.getSession)
		sg.DELETE("/sessions/:id", staff, a.deleteSession)
		sg.POST("/sessions/:id/start", staff, a.startSession)
		sg.POST("/sessions/:id/complete", staff, a.completeSession)
		sg.POST("/sessions/:id/cancel", staff, a.cancelSession)
		sg.GET("/sessions/:id/stats", a.sessionStats)
		sg.GET("/sessions/:id/export", staff, a.exportSession)
		sg.POST("/checkin", a.checkIn)
		sg.GET("/records", a.listRecords)
		if d.Images != nil {
			sg.POST("/images", a.uploadImage)
		}
	}

	r.GET("/dashboard/stats", authenticated, a.dashboardStats)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func (a *api) health(c *gin.Context) {
	body := gin.H{}
	healthy := true
	for name, check := range a.Checks {
		ok := check(c.Request.Context())
		body[name] = ok
		healthy = healthy && ok
	}
	status := http.StatusOK
	body["status"] = "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}
