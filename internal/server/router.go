package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/sagebridge-health/sagebridge-backend/internal/handlers"
  "github.com/sagebridge-health/sagebridge-backend/internal/middleware"
)

type RouterConfig struct {
  AuthHandler         *handlers.AuthHandler
  AuthMiddleware      *middleware.AuthMiddleware
  UserHandler         *handlers.UserHandler
  ClientHandler       *handlers.ClientHandler
  SessionHandler      *handlers.SessionHandler
  ImpressionsHandler  *handlers.ImpressionsHandler
  AnalysisHandler     *handlers.AnalysisHandler
  ComparisonHandler   *handlers.ComparisonHandler
  RiskFlagHandler     *handlers.RiskFlagHandler
  PlanHandler         *handlers.PlanHandler
  NotificationHandler *handlers.NotificationHandler
  AllowOrigins        []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  origins := cfg.AllowOrigins
  if len(origins) == 0 {
    origins = []string{"http://localhost:3000", "http://localhost:5173"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  // ===============
  // || Public    ||
  // ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  api := router.Group("/api")
  {
    api.POST("/register", cfg.AuthHandler.Register)
    api.POST("/login", cfg.AuthHandler.Login)
  }

  // ===============
  // || Protected ||
  // ===============
  protected := router.Group("/api")
  protected.Use(cfg.AuthMiddleware.RequireAuth())
  // Auth
  protected.POST("/refresh", cfg.AuthHandler.Refresh)
  protected.POST("/logout", cfg.AuthHandler.Logout)
  // User
  protected.GET("/user", cfg.UserHandler.GetMe)
  // Clients
  protected.POST("/clients", cfg.ClientHandler.Create)
  protected.GET("/clients", cfg.ClientHandler.List)
  protected.GET("/clients/:id", cfg.ClientHandler.Get)
  protected.GET("/clients/:id/plan", cfg.PlanHandler.GetForClient)
  // Sessions
  protected.POST("/sessions", cfg.SessionHandler.Create)
  protected.GET("/sessions", cfg.SessionHandler.List)
  protected.GET("/sessions/:id", cfg.SessionHandler.Get)
  // Impressions
  protected.POST("/sessions/:id/impressions", cfg.ImpressionsHandler.Create)
  protected.PUT("/sessions/:id/impressions", cfg.ImpressionsHandler.Update)
  protected.GET("/sessions/:id/impressions", cfg.ImpressionsHandler.Get)
  // Analysis
  protected.POST("/sessions/:id/analyze", cfg.AnalysisHandler.Analyze)
  protected.GET("/sessions/:id/analysis", cfg.AnalysisHandler.Get)
  // Comparison
  protected.GET("/sessions/:id/compare", cfg.ComparisonHandler.Compare)
  // Risk flags
  protected.GET("/sessions/:id/risk-flags", cfg.RiskFlagHandler.ListForSession)
  protected.POST("/risk-flags/:id/acknowledge", cfg.RiskFlagHandler.Acknowledge)
  // Treatment plans
  protected.POST("/plans", cfg.PlanHandler.Merge)
  protected.PUT("/plans/:id", cfg.PlanHandler.Edit)
  protected.POST("/plans/:id/approve", cfg.PlanHandler.Approve)
  protected.GET("/plans/:id", cfg.PlanHandler.Get)
  // Client portal
  protected.GET("/portal/plan", cfg.PlanHandler.PortalPlan)
  // Notifications
  protected.GET("/notifications", cfg.NotificationHandler.List)
  protected.POST("/notifications/:id/read", cfg.NotificationHandler.MarkRead)

  return router
}
