package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Cr4zy5h4rk/smart-prior-auth/internal/domain"
)

const defaultTitanModel = "amazon.titan-text-express-v1"

// TitanGenerator invokes an Amazon Titan text model through the Bedrock
// runtime invoke-model endpoint, authenticated with a Bedrock API key.
type TitanGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

type titanRequest struct {
	InputText            string                `json:"inputText"`
	TextGenerationConfig titanGenerationConfig `json:"textGenerationConfig"`
}

type titanGenerationConfig struct {
	MaxTokenCount int     `json:"maxTokenCount"`
	Temperature   float32 `json:"temperature"`
	TopP          float32 `json:"topP"`
}

type titanResponse struct {
	Results []struct {
		OutputText       string `json:"outputText"`
		CompletionReason string `json:"completionReason"`
	} `json:"results"`
}

type titanErrorBody struct {
	Message string `json:"message"`
}

// NewTitanGenerator creates a new Titan generator
func NewTitanGenerator(cfg domain.GeneratorConfig) (*TitanGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generator api key is required for provider titan")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		baseURL = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region)
	}
	model := cfg.Model
	if model == "" {
		model = defaultTitanModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &TitanGenerator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the provider name
func (g *TitanGenerator) Name() string {
	return "titan:" + g.model
}

// Generate invokes the model once. There is no retry.
func (g *TitanGenerator) Generate(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	body, err := json.Marshal(titanRequest{
		InputText: prompt,
		TextGenerationConfig: titanGenerationConfig{
			MaxTokenCount: params.MaxTokens,
			Temperature:   params.Temperature,
			TopP:          params.TopP,
		},
	})
	if err != nil {
		return "", domain.NewGenerationError(domain.GenerationValidation, "encoding request", err)
	}

	endpoint := fmt.Sprintf("%s/model/%s/invoke", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewGenerationError(domain.GenerationOther, "building request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", domain.NewGenerationError(domain.GenerationOther, "invoking model", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", domain.NewGenerationError(domain.GenerationOther, "reading response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errBody titanErrorBody
		msg := fmt.Sprintf("model returned status %d", resp.StatusCode)
		if json.Unmarshal(payload, &errBody) == nil && errBody.Message != "" {
			msg = fmt.Sprintf("%s: %s", msg, errBody.Message)
		}
		return "", domain.NewGenerationError(generationErrorKind(resp.StatusCode), msg, nil)
	}

	var out titanResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", domain.NewGenerationError(domain.GenerationMalformedResponse, "decoding response", err)
	}
	if len(out.Results) == 0 {
		return "", domain.NewGenerationError(domain.GenerationMalformedResponse, "response has no results", nil)
	}
	text := strings.TrimSpace(out.Results[0].OutputText)
	if text == "" {
		return "", domain.NewGenerationError(domain.GenerationMalformedResponse, "response has no output text", nil)
	}
	return text, nil
}
