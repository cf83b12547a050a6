package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"assistant-agent/internal/crawler"
	"assistant-agent/internal/integrations/paramstore"
	"assistant-agent/internal/research"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	bucket := mustEnv("BUCKET_NAME")
	queries := splitList(os.Getenv("SEARCH_QUERIES"))
	engineNames := splitList(os.Getenv("SEARCH_ENGINES"))
	if len(engineNames) == 0 {
		engineNames = []string{"duckduckgo", "google_kg"}
	}
	googleKGParam := os.Getenv("GOOGLE_API_KEY_PARAM")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}

	var engines []crawler.Engine
	for _, name := range engineNames {
		switch name {
		case "duckduckgo":
			engines = append(engines, crawler.Engine{Name: name, Searcher: research.NewDuckDuckGoClient(nil)})
		case "google_kg":
			if googleKGParam == "" {
				slog.Warn("google_kg engine requested but GOOGLE_API_KEY_PARAM is not set, skipping")
				continue
			}
			engines = append(engines, crawler.Engine{Name: name, Searcher: research.NewGoogleKGClient(nil, ssmClient, googleKGParam)})
		default:
			slog.Warn("unknown search engine, skipping", "engine", name)
		}
	}

	job, err := crawler.NewJob(engines, nil, awss3.NewFromConfig(cfg), bucket, queries)
	if err != nil {
		slog.Error("failed to create crawl job", "err", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context) (crawler.Report, error) {
		return job.Run(ctx)
	})
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
