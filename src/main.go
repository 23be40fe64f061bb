package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"roost/api"
	"roost/config"
	"roost/database"
	"roost/middleware"
	"roost/models"
	"roost/repository"
	"roost/services"

	"gorm.io/gorm"
)

func main() {
	// Load .env before configuration so env overrides apply.
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: [Main] No .env file found, relying on environment and config.yaml.")
	}

	// Load application configuration
	config.LoadConfig()

	// Initialize database connection
	db, err := database.Init()
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to initialize database: %v", err)
	}

	// Auto-migrate database schema
	runMigrations(db)

	// The catalog is validated at construction; a bad question graph fails
	// startup instead of stranding users mid-flow.
	catalog := services.NewDefaultQuestionCatalog()

	questionnaireRepo := repository.NewQuestionnaireRepository(db)
	log.Println("INFO: [Main] Repositories initialized.")

	autoSaveDelay := time.Duration(config.AppConfig.Questionnaire.AutoSaveDelayMS) * time.Millisecond
	questionnaireService := services.NewQuestionnaireService(questionnaireRepo, catalog, autoSaveDelay)
	defer questionnaireService.Close()
	categoryEditor := services.NewCategoryEditor(questionnaireService, catalog)
	log.Println("INFO: [Main] Services initialized.")

	apiHandler := api.NewAPIHandler(questionnaireService, categoryEditor, catalog)
	log.Println("INFO: [Main] API Handler initialized.")

	// Create Gin engine
	r := gin.Default()
	r.SetTrustedProxies(nil)

	// Register middlewares
	r.Use(middleware.Logger())
	r.Use(middleware.Cors())
	log.Println("INFO: [Main] Middlewares registered.")

	// Register routes
	registerRoutes(r, apiHandler)
	log.Println("INFO: [Main] Routes registered.")

	// Start the server
	serverPort := ":" + config.AppConfig.Server.Port
	if config.AppConfig.Server.Port == "" {
		log.Println("WARN: [Main] Server port not configured, using default :8080.")
		serverPort = ":8080"
	}
	log.Printf("INFO: [Main] Starting server on port %s", serverPort)
	if err := r.Run(serverPort); err != nil {
		log.Fatalf("FATAL: [Main] Server failed to start: %v", err)
	}
}

func runMigrations(db *gorm.DB) {
	log.Println("INFO: [Main] Running database migrations...")
	err := db.AutoMigrate(
		&models.QuestionnaireSession{},
	)
	if err != nil {
		log.Fatalf("FATAL: [Main] Failed to auto-migrate database: %v", err)
	}
	log.Println("INFO: [Main] Database migration completed.")
}

func registerRoutes(r *gin.Engine, handler *api.APIHandler) {
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/init", handler.InitHandler)

		questionnaireGroup := apiGroup.Group("/questionnaire/:applicantID")
		{
			questionnaireGroup.GET("", handler.StartOrContinueHandler)
			questionnaireGroup.POST("/answer", handler.RecordAnswerHandler)
			questionnaireGroup.POST("/continue", handler.ContinueHandler)
			questionnaireGroup.POST("/back", handler.BackHandler)
			questionnaireGroup.GET("/progress", handler.ProgressHandler)
			questionnaireGroup.POST("/save", handler.SaveHandler)
			questionnaireGroup.POST("/submit", handler.SubmitHandler)

			questionnaireGroup.GET("/categories", handler.CategoriesHandler)
			questionnaireGroup.POST("/categories/:categoryID/edit", handler.StartCategoryHandler)
			questionnaireGroup.GET("/editor", handler.EditorQuestionHandler)
			questionnaireGroup.POST("/editor/answer", handler.EditorRecordAnswerHandler)
			questionnaireGroup.POST("/editor/continue", handler.EditorContinueHandler)
			questionnaireGroup.POST("/editor/back", handler.EditorBackHandler)
			questionnaireGroup.POST("/cosigner", handler.AddCoSignerHandler)
		}
	}
}
