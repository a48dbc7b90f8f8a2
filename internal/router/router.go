package router

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/clubdesk/ticket-service/api"
	"github.com/clubdesk/ticket-service/internal/handler"
)

const (
	PathHealth   = "/health"
	PathReady    = "/ready"
	PathSwagger  = "/swagger"
	PathVersion  = "/api/version"
	PathTickets  = "/api/tickets"
	PathWebhook  = "/telegram/webhook"
	PathCronJobs = "/cron/remind"
)

// Deps — хендлеры и настройки, из которых собирается роутер.
type Deps struct {
	Health   *handler.HealthHandler
	Tickets  *handler.TicketHandler
	Telegram *handler.TelegramHandler
	Cron     *handler.CronHandler
	// FrontendOrigin — разрешённый CORS origin; "*" или пусто = любой.
	FrontendOrigin string
	Log            *slog.Logger
}

func New(d Deps) http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	// AccessLog снаружи Recovery: запрос с паникой тоже попадает в лог со статусом 500.
	r.Use(handler.RequestID())
	r.Use(handler.AccessLog(d.Log))
	r.Use(handler.Recovery(d.Log))
	r.Use(cors.New(corsConfig(d.FrontendOrigin)))

	r.NoRoute(handler.NoRoute)
	r.NoMethod(handler.NoMethod)

	r.GET("/", d.Health.Health)
	r.GET(PathHealth, d.Health.Health)
	r.GET(PathReady, d.Health.Ready)
	r.GET(PathVersion, d.Health.Version)
	r.GET(PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, PathSwagger+"/") })
	r.GET(PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = PathSwagger + "/index.html"
			c.Request.RequestURI = PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(PathSwagger+"/openapi.json"))(c)
	})

	tickets := r.Group(PathTickets)
	{
		tickets.GET("", d.Tickets.List)
		tickets.POST("", d.Tickets.Create)
		tickets.GET("/:id", d.Tickets.Get)
		tickets.PATCH("/:id", d.Tickets.Update)
		tickets.POST("/:id", d.Tickets.Update)
		tickets.PATCH("/:id/status", d.Tickets.Update)
		tickets.POST("/:id/status", d.Tickets.Update)
	}

	r.POST(PathWebhook, d.Telegram.Webhook)
	r.GET(PathCronJobs, d.Cron.Remind)
	r.POST(PathCronJobs, d.Cron.Remind)

	return r
}

func corsConfig(origin string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", handler.HeaderRequestID},
		ExposeHeaders: []string{handler.HeaderRequestID},
		MaxAge:        12 * time.Hour,
	}
	origin = strings.TrimSpace(origin)
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = strings.Split(origin, ",")
		for i := range cfg.AllowOrigins {
			cfg.AllowOrigins[i] = strings.TrimSpace(cfg.AllowOrigins[i])
		}
	}
	return cfg
}
