package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsbedrockruntime "github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"assistant-agent/handler"
	"assistant-agent/internal/auth"
	"assistant-agent/internal/integrations/bedrock"
	"assistant-agent/internal/integrations/paramstore"
	"assistant-agent/internal/repository"
	"assistant-agent/internal/research"
	"assistant-agent/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	tables := repository.Tables{
		Users:          mustEnv("USERS_TABLE"),
		Conversations:  mustEnv("CONVERSATIONS_TABLE"),
		Reminders:      mustEnv("REMINDERS_TABLE"),
		AdminKnowledge: mustEnv("ADMIN_KNOWLEDGE_TABLE"),
		Budget:         mustEnv("BUDGET_TABLE"),
		SearchHistory:  mustEnv("SEARCH_HISTORY_TABLE"),
	}
	userPoolID := mustEnv("USER_POOL_ID")
	clientID := mustEnv("USER_POOL_CLIENT_ID")
	region := os.Getenv("COGNITO_REGION")
	if region == "" {
		region = mustEnv("AWS_REGION")
	}
	modelID := envOr("BEDROCK_MODEL_ID", bedrock.DefaultModelID)
	googleKGParam := os.Getenv("GOOGLE_API_KEY_PARAM")
	adminSecretParam := os.Getenv("ADMIN_SECRET_PARAM")
	targetResults := envInt("SEARCH_TARGET_RESULTS", 5)

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
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), tables)
	if err != nil {
		slog.Error("failed to create state store", "err", err)
		os.Exit(1)
	}
	completer, err := bedrock.NewClient(awsbedrockruntime.NewFromConfig(cfg), modelID)
	if err != nil {
		slog.Error("failed to create completion client", "err", err)
		os.Exit(1)
	}
	verifier, err := auth.NewVerifier(ctx, region, userPoolID, clientID)
	if err != nil {
		slog.Error("failed to create token verifier", "err", err)
		os.Exit(1)
	}

	var kg research.Searcher
	if googleKGParam != "" {
		kg = research.NewGoogleKGClient(nil, ssmClient, googleKGParam)
	}
	engine, err := research.NewEngine(research.NewDuckDuckGoClient(nil), kg, research.NewPageCrawler(nil), store, targetResults)
	if err != nil {
		slog.Error("failed to create research engine", "err", err)
		os.Exit(1)
	}

	// ---- Services ----
	chatService, err := usecase.NewChatService(verifier, store, engine, completer)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}
	adminService, err := usecase.NewAdminService(verifier, store)
	if err != nil {
		slog.Error("failed to create admin service", "err", err)
		os.Exit(1)
	}

	adminSecret := paramstore.GetOptionalParameter(ctx, ssmClient, adminSecretParam)
	if adminSecret == "" {
		slog.Warn("admin secret not configured, operator endpoints are disabled")
	}

	h, err := handler.NewHandler(chatService, adminService, adminSecret)
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

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
