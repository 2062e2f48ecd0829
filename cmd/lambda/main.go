package main

import (
	"context"
	"log/slog"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/tendant/simple-presign/internal/logging"
	"github.com/tendant/simple-presign/pkg/presign"
	"github.com/tendant/simple-presign/pkg/presign/config"
	presignlambda "github.com/tendant/simple-presign/pkg/presign/lambda"
)

// One binary serves all three functions; LAMBDA_HANDLER picks which.
func main() {
	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}
	if cfg.LambdaHandler == "" {
		slog.Error("LAMBDA_HANDLER is required", "allowed", []string{
			presignlambda.HandlerUploadURL,
			presignlambda.HandlerUploadPost,
			presignlambda.HandlerDownload,
		})
		os.Exit(1)
	}

	// Lambda ships stdout to CloudWatch; JSON lines regardless of ENVIRONMENT.
	logger := logging.Setup(os.Stdout, "production", cfg.LogLevel)

	svc, err := cfg.BuildService(context.Background(), presign.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to build service", "err", err)
		os.Exit(1)
	}

	adapter := presignlambda.New(svc,
		presignlambda.WithExposeErrors(cfg.ExposeErrorDetails),
		presignlambda.WithLogger(logger),
	)
	handler, err := adapter.Handler(cfg.LambdaHandler)
	if err != nil {
		logger.Error("Failed to select handler", "err", err)
		os.Exit(1)
	}

	awslambda.Start(handler)
}
