package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"attendkiosk/internal/admin"
	"attendkiosk/internal/attendance"
	"attendkiosk/internal/auth"
	"attendkiosk/internal/backend"
	"attendkiosk/internal/capture"
	"attendkiosk/internal/config"
	"attendkiosk/internal/history"
	"attendkiosk/internal/httpmiddleware"
	"attendkiosk/internal/metrics"
	"attendkiosk/internal/session"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal("kiosk agent failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" || env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(cfg config.App, logger *zap.Logger) error {
	// The persisted session loads before anything routes, so a restarted
	// agent never answers "no session" for a logged-in user.
	var store session.Store
	if cfg.SessionBackend == "redis" {
		store = session.NewRedisStore(cfg.RedisAddr)
	} else {
		store = session.NewFileStore(cfg.SessionFile)
	}
	sessions := session.NewManager(store)
	if err := sessions.Init(context.Background()); err != nil {
		return err
	}
	if s := sessions.Current(); s.Active() {
		logger.Info("restored session", zap.String("username", s.User.Username), zap.String("role", s.User.Role))
	}

	client := backend.New(cfg.APIBaseURL)

	var locator capture.Locator
	if cfg.GeoMode == "http" {
		l := capture.NewHTTPLocator(cfg.GeoURL)
		l.Timeout = cfg.GeoTimeout
		locator = l
	} else {
		locator = capture.StaticLocator{Lat: cfg.StaticLat, Lon: cfg.StaticLon}
	}

	cache, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		logger.Warn("history cache unavailable", zap.Error(err))
		cache = nil
	}
	defer cache.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	met := metrics.New(reg)

	submitter := attendance.New(locator, client, sessions, cache, met, logger)
	if cfg.SiteRadiusM > 0 {
		submitter.SetSite(capture.Fix{Lat: cfg.SiteLat, Lon: cfg.SiteLon}, cfg.SiteRadiusM)
	}
	submitter.LoadCachedHistory(context.Background())

	// The open stream is shared across captures for the whole page lifetime
	// and reopened through /camera/start; streamMu covers the swap.
	camera := capture.NewHTTPCamera(cfg.CameraURL, cfg.JPEGQuality)
	var (
		streamMu sync.Mutex
		stream   capture.Stream
	)
	if s, err := camera.Open(context.Background()); err != nil {
		logger.Warn("camera not available at startup, use POST /camera/start", zap.Error(err))
	} else {
		stream = s
		submitter.AttachStream(s)
	}
	defer func() {
		streamMu.Lock()
		defer streamMu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
	}()

	adminSvc := admin.New(client, sessions, met, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	r.GET("/healthz", func(c *gin.Context) {
		streamMu.Lock()
		cameraUp := stream != nil
		streamMu.Unlock()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"camera":    cameraUp,
			"logged_in": sessions.Current().Active(),
			"state":     submitter.State(),
		})
	})

	r.POST("/auth/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := client.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
			return
		}
		if err := sessions.Login(c.Request.Context(), res.AccessToken, res.User); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": res.User})
	})

	r.POST("/auth/logout", auth.RequireSession(sessions), func(c *gin.Context) {
		if err := sessions.Logout(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	})

	r.GET("/auth/session", func(c *gin.Context) {
		s := sessions.Current()
		if !s.Active() {
			c.JSON(http.StatusOK, gin.H{"logged_in": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logged_in": true, "user": s.User})
	})

	// Dev/seed passthrough matching the backend's register form.
	r.POST("/auth/register", func(c *gin.Context) {
		in := backend.RegisterInput{
			Username:  c.PostForm("username"),
			Password:  c.PostForm("password"),
			Role:      c.PostForm("role"),
			CompanyID: c.PostForm("company_id"),
			FullName:  c.PostForm("full_name"),
		}
		if file, err := c.FormFile("image"); err == nil {
			f, err := file.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "read face image failed"})
				return
			}
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "read face image failed"})
				return
			}
			in.FaceImage = data
		}
		res, err := client.Register(c.Request.Context(), in)
		if err != nil {
			c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, res)
	})

	studentRoutes := r.Group("/", auth.RequireSession(sessions, auth.RoleStudent))

	studentRoutes.POST("/camera/start", func(c *gin.Context) {
		s, err := camera.Open(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		streamMu.Lock()
		if stream != nil {
			_ = stream.Close()
		}
		stream = s
		streamMu.Unlock()
		submitter.AttachStream(s)
		c.JSON(http.StatusOK, gin.H{"status": "camera started"})
	})

	studentRoutes.POST("/attendance/submit", func(c *gin.Context) {
		res, err := submitter.Submit(c.Request.Context())
		if err != nil {
			status := http.StatusBadGateway
			switch {
			case errors.Is(err, attendance.ErrBusy):
				status = http.StatusConflict
			case errors.Is(err, capture.ErrLocationTimeout):
				status = http.StatusGatewayTimeout
			case errors.Is(err, capture.ErrLocationUnavailable),
				errors.Is(err, capture.ErrCameraUnavailable),
				errors.Is(err, capture.ErrNoFrame),
				errors.Is(err, attendance.ErrNoStream):
				status = http.StatusServiceUnavailable
			default:
				status = upstreamStatus(err)
			}
			c.JSON(status, gin.H{"error": err.Error(), "state": submitter.State()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": res, "display": res.Display()})
	})

	studentRoutes.GET("/attendance/history", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"records": submitter.History()})
	})

	adminRoutes := r.Group("/admin", auth.RequireSession(sessions, auth.RoleCompanyAdmin, auth.RoleFacultyAdmin))

	adminRoutes.GET("/records", func(c *gin.Context) {
		page, err := adminSvc.Query(c.Request.Context(), filterFromQuery(c))
		if err != nil {
			c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, page)
	})

	adminRoutes.GET("/export", func(c *gin.Context) {
		path, err := adminSvc.Export(c.Request.Context(), filterFromQuery(c), cfg.ExportDir)
		if err != nil {
			c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"path": path})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // a submit holds the request for the whole attempt
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("kiosk agent listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
	return nil
}

// filterFromQuery builds the admin filter from query params; absent params
// stay absent, they are never forwarded as empty strings.
func filterFromQuery(c *gin.Context) backend.Filter {
	f := backend.Filter{
		Company: c.Query("company"),
		Student: c.Query("student"),
		Start:   c.Query("start"),
		End:     c.Query("end"),
	}
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Page = n
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	return f
}

// upstreamStatus maps a backend error onto this surface: APIError keeps its
// status, anything else is a bad gateway.
func upstreamStatus(err error) int {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return http.StatusBadGateway
}
