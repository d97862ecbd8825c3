package controller

import (
	"context"
	"net/http"

	"fieldops-backend/dal"
	"fieldops-backend/middelware"
	"fieldops-backend/models"
	"fieldops-backend/repository"
	"fieldops-backend/services"
	"fieldops-backend/utils/logger"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	WorkOrder *WorkOrderController

	config *models.Config
	logger logger.Logger
	actor  *middelware.ActorMiddleware
}

func NewController(ctx context.Context, cfg *models.Config, log logger.Logger) *Controller {
	dbclient, err := dal.NewDynamoDBClient(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize DynamoDB client: %v", err)
	}

	workOrderRepo := repository.NewWorkOrderRepository(dbclient, cfg, log)
	ledger := repository.NewLedger(dbclient, cfg, log)
	resolver := repository.NewReferenceResolver(dbclient, cfg, log)

	commandService := services.NewWorkOrderService(workOrderRepo, ledger, resolver, cfg, log)
	queryService := services.NewQueryService(workOrderRepo, ledger, log)

	return &Controller{
		WorkOrder: NewWorkOrderController(ctx, commandService, queryService, log),
		config:    cfg,
		logger:    log,
		actor:     middelware.NewActorMiddleware(cfg, log),
	}
}

func (c *Controller) RegisterRoutes(ctx context.Context, config *models.Config, r *gin.Engine, basePath string) error {
	logging := middelware.NewLoggingMiddleware(c.logger)
	cors := middelware.NewCORSMiddleware(config)

	r.Use(logging.Recovery())
	r.Use(logging.RequestLogger())
	r.Use(cors.CORS())

	v1 := r.Group(basePath)

	// Health check endpoint (no auth required)
	v1.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"version": config.AppVersion,
			"service": config.AppName,
		})
	})

	auth := c.actor.RequireActor()

	workOrders := v1.Group("/workorders")
	workOrders.POST("", auth, c.WorkOrder.CreateWorkOrder)
	workOrders.GET("", auth, c.WorkOrder.ListWorkOrders)
	workOrders.GET("/:id", auth, c.WorkOrder.GetWorkOrder)
	workOrders.PATCH("/:id", auth, c.WorkOrder.UpdateWorkOrder)
	workOrders.DELETE("/:id", auth, c.WorkOrder.CancelWorkOrder)
	workOrders.POST("/:id/stages/complete", auth, c.WorkOrder.CompleteStage)
	workOrders.POST("/:id/support", auth, c.WorkOrder.RequestSupport)
	workOrders.POST("/:id/report", auth, c.WorkOrder.RegisterReport)
	workOrders.GET("/:id/history", auth, c.WorkOrder.GetHistory)

	v1.GET("/support-requests", auth, c.WorkOrder.ListSupportRequests)

	// Create HTTP server
	srv := &http.Server{
		Addr:    config.AppHost + ":" + config.AppPort,
		Handler: r,
	}

	c.logger.Infof("Starting server on %s:%s", config.AppHost, config.AppPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
