package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"chat-dispatch/handler"
	"chat-dispatch/internal/config"
	"chat-dispatch/internal/httpserver"
	"chat-dispatch/internal/integrations/gemini"
	"chat-dispatch/internal/integrations/openai"
	"chat-dispatch/internal/integrations/paramstore"
	"chat-dispatch/internal/usecase"
)

func main() {
	ctx := context.Background()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// Local runs may keep secrets in .env; Lambda relies on the real environment.
	_ = godotenv.Load()

	// ---- Configuration (read only here) ----
	var secrets config.SecretSource
	if prefix := os.Getenv(config.EnvParamPrefix); prefix != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg), prefix)
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		secrets = ssmClient
	}

	cfg, err := config.Load(ctx, os.Getenv, secrets)
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "config", cfg)

	// ---- Clients ----
	httpClient := &http.Client{Timeout: cfg.UpstreamTimeout}

	geminiClient, err := gemini.NewClient(cfg.GeminiAPIKey,
		gemini.WithEndpoint(cfg.GeminiURL),
		gemini.WithHTTPClient(httpClient),
	)
	if err != nil {
		slog.Error("failed to create Gemini client", "err", err)
		os.Exit(1)
	}

	deepseekClient, err := openai.NewClient(cfg.DeepseekAPIKey,
		openai.WithBaseURL(cfg.DeepseekURL),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		slog.Error("failed to create Deepseek client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	dispatchService, err := usecase.NewDispatchService(geminiClient, deepseekClient)
	if err != nil {
		slog.Error("failed to create dispatch service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(dispatchService, handler.NewEnvStatus(config.EnvDeepseekAPIKey, cfg.DeepseekAPIKey))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if cfg.ListenAddr == "" {
		lambda.Start(h.Handle)
		return
	}

	httpserver.SetMode(os.Getenv(gin.EnvGinMode))
	router, err := httpserver.NewRouter(h)
	if err != nil {
		slog.Error("failed to create router", "err", err)
		os.Exit(1)
	}
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := httpserver.Run(runCtx, cfg.ListenAddr, router, cfg.UpstreamTimeout); err != nil {
		slog.Error("http server stopped", "err", err)
		stop()
		os.Exit(1)
	}
}
