package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"admachine-studio/modules/common/config"
	"admachine-studio/modules/creative"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewClient - genai client on the Gemini API (API key) or on Vertex AI
func NewClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*genai.Client, error) {
	if cfg.GeminiBackend != config.BackendVertexAI {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		log.Info().Msg("✅ [Gemini] Client initialized (Gemini API)")
		return client, nil
	}

	creds, err := vertexCredentials(cfg, log)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:     cfg.VertexAIProject,
		Location:    cfg.VertexAILocation,
		Backend:     genai.BackendVertexAI,
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	log.Info().
		Str("project", cfg.VertexAIProject).
		Str("location", cfg.VertexAILocation).
		Msg("✅ [Gemini] Client initialized (Vertex AI)")
	return client, nil
}

// vertexCredentials - inline JSON first (hosted deploys), then a file path, then ADC
func vertexCredentials(cfg *config.Config, log zerolog.Logger) (*auth.Credentials, error) {
	opts := &credentials.DetectOptions{Scopes: []string{cloudPlatformScope}}

	switch {
	case cfg.VertexAICredentialsJSON != "":
		log.Info().Msg("✅ [Gemini] Using VERTEXAI_CREDENTIALS_JSON")
		opts.CredentialsJSON = []byte(cfg.VertexAICredentialsJSON)
	case cfg.VertexAICredentialsPath != "":
		log.Info().Str("path", cfg.VertexAICredentialsPath).Msg("✅ [Gemini] Using credentials file")
		data, err := os.ReadFile(cfg.VertexAICredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON credentials in %s", cfg.VertexAICredentialsPath)
		}
		opts.CredentialsJSON = data
	default:
		log.Warn().Msg("⚠️ [Gemini] No explicit credentials, using Application Default Credentials")
	}

	creds, err := credentials.DetectDefault(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load Vertex AI credentials: %w", err)
	}
	return creds, nil
}

// isRateLimited - 429 / quota responses from either backend
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "quota")
}

// classify - wrap a transport error with the operation sentinel, adding
// ErrQuotaExceeded for rate limits. Nothing is retried.
func classify(sentinel error, err error) error {
	if isRateLimited(err) {
		return fmt.Errorf("%w: %w: %v", sentinel, creative.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
