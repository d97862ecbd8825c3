package main

import (
	"context"
	"log"

	"fieldops-backend/controller"
	"fieldops-backend/dal"
	"fieldops-backend/models"
	"fieldops-backend/repository"
	"fieldops-backend/utils"
	"fieldops-backend/utils/logger"
	"fieldops-backend/worker"

	"github.com/gin-gonic/gin"
)

var config *models.Config

func Init() {
	var err error
	config, err = utils.GetConfig()
	if err != nil {
		log.Fatal(err)
	}
}

// @title FieldOps Backend API
// @version 1.0
// @description Work order coordination service: evidence-gated stage lifecycle,
// @description append-only audit ledger with per-field diffs, and support/report
// @description workflows for field technicians.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8081
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Authorization header using the Bearer scheme. Enter 'Bearer' [space] and then your token.
func main() {
	Init()

	ctx := context.Background()
	appLogger := logger.NewLogger(config.LogLevel, config.LogFormat)

	appLogger.Infof("Starting %s %s (%s)", config.AppName, config.AppVersion, config.AppEnv)
	appLogger.Debugf("Loaded configuration: %s", utils.PrintPrettyJSON(config))

	r := gin.New()
	c := controller.NewController(ctx, config, appLogger)

	// Start server (this is blocking)
	go func() {
		if err := c.RegisterRoutes(ctx, config, r, config.BasePath); err != nil {
			appLogger.Fatalf("Server failed: %v", err)
		}
	}()

	// Background worker: table provisioning plus the scheduled audit sweep.
	dbclient, err := dal.NewDynamoDBClient(config, appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to initialize DynamoDB client for worker: %v", err)
	}
	workOrderRepo := repository.NewWorkOrderRepository(dbclient, config, appLogger)
	auditRepo := repository.NewAuditRepository(dbclient, config, appLogger)

	backgroundWorker, err := worker.NewService(dbclient, workOrderRepo, auditRepo, config, appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to create background worker: %v", err)
	}
	backgroundWorker.StartInBackground()

	// Keep main goroutine alive
	select {}
}
