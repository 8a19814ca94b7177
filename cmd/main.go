package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"commerce-agent/handler"
	"commerce-agent/internal/agent"
	"commerce-agent/internal/integrations/openai"
	"commerce-agent/internal/integrations/paramstore"
	"commerce-agent/internal/repository"
	"commerce-agent/internal/usecase"
)

func main() {
	ctx := context.Background()
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	// ---- Configuration (read only here) ----
	table := mustEnv("TABLE_NAME")
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxQuestionLen := envInt("MAX_QUESTION_LENGTH", 500)
	maxIterations := envInt("MAX_ITERATIONS", agent.DefaultMaxIterations)
	traceTTLDays := envInt("TRACE_TTL_DAYS", 30)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), table,
		repository.WithTraceTTL(time.Duration(traceTTLDays)*24*time.Hour))
	if err != nil {
		slog.Error("failed to create store client", "err", err)
		os.Exit(1)
	}

	openaiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	askService, err := usecase.NewAskService(ssmClient, openaiClient, store, store, usecase.Options{
		ParamPrefix:    paramPrefix,
		MaxQuestionLen: maxQuestionLen,
		MaxIterations:  maxIterations,
	})
	if err != nil {
		slog.Error("failed to create ask service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(askService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring malformed integer environment variable", "key", key, "value", v)
		return def
	}
	return n
}
