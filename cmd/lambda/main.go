package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"internship-backend/infrastructure/config"
	"internship-backend/infrastructure/di"
	"internship-backend/interfaces/http/boundary"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"go.uber.org/zap"
)

// Global variables for Lambda lifecycle management
var (
	// httpLambda translates API Gateway v2 events for the adapter
	httpLambda *httpadapter.HandlerAdapterV2

	// logger is replaced by the container logger once the build succeeds
	logger *zap.Logger

	// coldStart tracks whether this is a cold start invocation
	coldStart = true

	// coldStartTime records when the cold start began
	coldStartTime time.Time
)

// init runs during cold start. Nothing here may exit the process: a
// configuration or build failure leaves the adapter serving its fallback.
func init() {
	coldStartTime = time.Now()

	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		log.Printf("Failed to create logger: %v", err)
		logger = zap.NewNop()
	}

	cfg, cfgErr := config.LoadConfig()

	debug := cfgErr == nil && !cfg.IsProduction()

	adapter := boundary.New(func() (http.Handler, error) {
		if cfgErr != nil {
			return nil, cfgErr
		}
		container, err := di.InitializeContainer(cfg)
		if err != nil {
			return nil, err
		}
		logger = container.Logger
		return container.Handler, nil
	}, logger, debug)

	// Build during the cold start so the first invocation does not pay for it.
	if err := adapter.Init(); err != nil {
		logger.Error("Lambda cold start failed; serving fallback responses", zap.Error(err))
	}
	httpLambda = httpadapter.NewV2(adapter)

	logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)),
		zap.String("adapter_state", adapter.State().String()),
	)
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := httpLambda.ProxyWithContext(ctx, req)
	if err != nil {
		logger.Error("Failed to proxy request",
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.Error(err),
		)
	}

	// Add custom headers for monitoring
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}

	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		resp.Headers["X-Cold-Start-Duration"] = time.Since(coldStartTime).String()
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}

	// Add request ID for tracing
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Lambda-Request-ID"] = req.RequestContext.RequestID
	}
	resp.Headers["X-Lambda-Stage"] = req.RequestContext.Stage

	logger.Info("Lambda response",
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.String("request_id", req.RequestContext.RequestID),
		zap.Int("status_code", resp.StatusCode),
		zap.String("stage", req.RequestContext.Stage),
	)

	return resp, err
}

// main is the entry point for the Lambda function
func main() {
	lambda.Start(Handler)
}
