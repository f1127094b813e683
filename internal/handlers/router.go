package handlers

import (
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	intakeHandler  *IntakeHandler
	sessionHandler *SessionHandler
	resultsHandler *ResultsHandler
}

func NewHandlerManager(
	intakeService services.IntakeService,
	sessionService services.SessionService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		intakeHandler:  NewIntakeHandler(intakeService, logger),
		sessionHandler: NewSessionHandler(sessionService, logger),
		resultsHandler: NewResultsHandler(logger),
	}
}

// NewRouter builds the engine with request logging, recovery and CORS for
// the page origins.
func NewRouter(environment string, allowOrigins []string, logger utils.Logger) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))
	corsConfig := cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Origin", "Cache-Control", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowOrigins) == 0 {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))
	return router
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)
	router.GET("/results", hm.resultsHandler.GetResults)

	v1 := router.Group("/api/v1")
	{
		assessments := v1.Group("/assessments")
		{
			assessments.GET("/:id", hm.intakeHandler.GetAssessment)
			assessments.POST("/:id/sessions", hm.sessionHandler.StartSession)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:session_id", hm.sessionHandler.GetSession)
			sessions.DELETE("/:session_id", hm.sessionHandler.CloseSession)
			sessions.PUT("/:session_id/answers/:question_id", hm.sessionHandler.RecordAnswer)
			sessions.POST("/:session_id/next", hm.sessionHandler.Next)
			sessions.POST("/:session_id/prev", hm.sessionHandler.Prev)
			sessions.POST("/:session_id/submit", hm.sessionHandler.SubmitSession)
		}
	}
}
