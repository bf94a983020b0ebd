package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/ingest-sentinel/internal/core/domain"
	"github.com/kirillkom/ingest-sentinel/internal/infrastructure/judgment/rules"
	"github.com/kirillkom/ingest-sentinel/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, genModel string) *Client {
	return NewWithOptions(baseURL, genModel, Options{})
}

func NewWithOptions(baseURL, genModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) Model() string {
	return c.genModel
}

// Planner asks the model for the next agent step as a strict JSON object.
type Planner struct {
	client *Client
}

func NewPlanner(client *Client) *Planner {
	return &Planner{client: client}
}

func (p *Planner) GenerateJSONFromPrompt(ctx context.Context, prompt string) (string, error) {
	respText, err := p.client.generateJSON(ctx, "plan", prompt)
	if err != nil {
		return "", err
	}
	return extractJSONObject(respText), nil
}

// Judge asks the model for a severity label only. The headline and action are
// composed deterministically so two judges disagree on severity at most.
type Judge struct {
	client *Client
}

func NewJudge(client *Client) *Judge {
	return &Judge{client: client}
}

func (j *Judge) Classify(ctx context.Context, input domain.JudgeInput) (domain.SeverityAssessment, error) {
	respText, err := j.client.generateJSON(ctx, "judge", buildSeverityPrompt(input))
	if err != nil {
		return domain.SeverityAssessment{}, err
	}
	severity, err := parseSeverityResponse(respText)
	if err != nil {
		return domain.SeverityAssessment{}, err
	}
	return rules.Compose(input, severity), nil
}

func parseSeverityResponse(raw string) (domain.Severity, error) {
	var result struct {
		Severity string `json:"severity"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return "", fmt.Errorf("parse severity json: %w", err)
	}

	switch severity := domain.Severity(strings.ToLower(strings.TrimSpace(result.Severity))); severity {
	case domain.SeverityUrgent, domain.SeverityNeedsAttention, domain.SeverityAllGood:
		return severity, nil
	default:
		return "", fmt.Errorf("unknown severity label: %q", result.Severity)
	}
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, operation, reqBody)
}

func (c *Client) generate(ctx context.Context, operation string, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapUnavailableIfNeeded(operation, err)
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
