package main

import (
  "fmt"
  "os"
  "strings"
  "time"

  "github.com/sagebridge-health/sagebridge-backend/internal/db"
  "github.com/sagebridge-health/sagebridge-backend/internal/handlers"
  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/middleware"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/server"
  "github.com/sagebridge-health/sagebridge-backend/internal/services"
  "github.com/sagebridge-health/sagebridge-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Env
  log.Info("Loading environment variables from main...")
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
  accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
  refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
  allowOrigins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173", log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  userTokenRepo := repos.NewUserTokenRepo(thePG, log)
  clientRepo := repos.NewClientRepo(thePG, log)
  sessionRepo := repos.NewSessionRepo(thePG, log)
  impressionsRepo := repos.NewImpressionsRepo(thePG, log)
  aiAnalysisRepo := repos.NewAIAnalysisRepo(thePG, log)
  riskFlagRepo := repos.NewRiskFlagRepo(thePG, log)
  planRepo := repos.NewTreatmentPlanRepo(thePG, log)
  planVersionRepo := repos.NewPlanVersionRepo(thePG, log)
  notificationRepo := repos.NewNotificationRepo(thePG, log)

  // Services
  log.Info("Setting up Services from main...")
  openaiClient, err := services.NewOpenAIClient(log)
  if err != nil {
    log.Error("Could not init OpenAIClient", "error", err)
    os.Exit(1)
  }
  authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
  userService := services.NewUserService(thePG, log, userRepo)
  clientService := services.NewClientService(thePG, log, clientRepo)
  sessionService := services.NewSessionService(thePG, log, sessionRepo, clientRepo)
  notificationService := services.NewNotificationService(thePG, log, notificationRepo)
  riskService := services.NewRiskService(log, openaiClient)
  analysisService := services.NewAnalysisService(thePG, log, openaiClient, sessionRepo, impressionsRepo, aiAnalysisRepo, riskFlagRepo, riskService, notificationService)
  impressionsService := services.NewImpressionsService(thePG, log, impressionsRepo, sessionRepo, aiAnalysisRepo)
  comparisonService := services.NewComparisonService(log, sessionRepo, impressionsRepo, aiAnalysisRepo)
  riskFlagService := services.NewRiskFlagService(thePG, log, riskFlagRepo, sessionRepo)
  planService := services.NewPlanService(thePG, log, clientRepo, sessionRepo, planRepo, planVersionRepo, analysisService, notificationService)

  // Handlers
  log.Info("Setting up handlers from main...")
  authHandler := handlers.NewAuthHandler(authService)
  userHandler := handlers.NewUserHandler(log, userService)
  clientHandler := handlers.NewClientHandler(log, clientService)
  sessionHandler := handlers.NewSessionHandler(log, sessionService)
  impressionsHandler := handlers.NewImpressionsHandler(log, impressionsService)
  analysisHandler := handlers.NewAnalysisHandler(log, analysisService)
  comparisonHandler := handlers.NewComparisonHandler(log, comparisonService)
  riskFlagHandler := handlers.NewRiskFlagHandler(log, riskFlagService)
  planHandler := handlers.NewPlanHandler(log, planService)
  notificationHandler := handlers.NewNotificationHandler(log, notificationService)

  // Middleware
  log.Info("Setting up middleware from main...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:         authHandler,
    AuthMiddleware:      authMiddleware,
    UserHandler:         userHandler,
    ClientHandler:       clientHandler,
    SessionHandler:      sessionHandler,
    ImpressionsHandler:  impressionsHandler,
    AnalysisHandler:     analysisHandler,
    ComparisonHandler:   comparisonHandler,
    RiskFlagHandler:     riskFlagHandler,
    PlanHandler:         planHandler,
    NotificationHandler: notificationHandler,
    AllowOrigins:        strings.Split(allowOrigins, ","),
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Error("Server failed", "error", err)
  }
}
