package gemini

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"menagerie/pkg/config"
	"menagerie/pkg/llm"
)

// UsageTracker receives per-intent generation outcomes. Optional.
type UsageTracker interface {
	TrackSuccess(intent string)
	TrackRateLimited(intent string)
	TrackServerError(intent string)
	TrackFailure(intent string)
}

// Client implements llm.Provider for Google Gemini.
type Client struct {
	genaiClient *genai.Client
	apiKey      string
	modelName   string
	profiles    map[string]string // Map intent -> modelName
	logPath     string
	usage       UsageTracker

	mu sync.RWMutex
}

// NewClient creates a new Gemini client.
func NewClient(cfg config.LLMConfig, logPath string) (*Client, error) {
	c := &Client{logPath: logPath}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure updates the client with new settings.
func (c *Client) Configure(cfg config.LLMConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apiKey = cfg.Key
	c.modelName = cfg.Model
	c.profiles = cfg.Profiles

	if c.modelName == "" {
		c.modelName = "gemini-2.5-flash-lite"
	}

	if c.apiKey == "" {
		// Can't initialize without key.
		c.genaiClient = nil
		return nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: c.apiKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	c.genaiClient = client

	return nil
}

// SetUsageTracker attaches an outcome tracker. Pass before serving traffic.
func (c *Client) SetUsageTracker(t UsageTracker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage = t
}

// trackOutcome records the classified result of one backend call.
func (c *Client) trackOutcome(intent string, err error) {
	c.mu.RLock()
	usage := c.usage
	c.mu.RUnlock()
	if usage == nil {
		return
	}

	switch {
	case err == nil:
		usage.TrackSuccess(intent)
	case llm.IsRateLimited(err):
		usage.TrackRateLimited(intent)
	case llm.IsTransient(err):
		usage.TrackServerError(intent)
	default:
		usage.TrackFailure(intent)
	}
}

// Close cleans up resources.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genaiClient = nil
}

// GenerateText sends a prompt and returns the text response.
func (c *Client) GenerateText(ctx context.Context, name, prompt string) (string, error) {
	c.mu.RLock()
	client := c.genaiClient
	c.mu.RUnlock()

	if client == nil {
		return "", fmt.Errorf("gemini client not configured")
	}

	modelName, cfg := c.resolveModel(name)

	resp, err := client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), cfg)
	if err != nil {
		classified := llm.Classify(err)
		c.trackOutcome(name, classified)
		c.logPrompt(name, prompt, fmt.Sprintf("ERROR: %v", err))
		return "", fmt.Errorf("generate text error: %w", classified)
	}

	text, err := getResponseText(resp)
	if err != nil {
		c.trackOutcome(name, err)
		c.logPrompt(name, prompt, fmt.Sprintf("TEXT_PARSE_ERROR: %v", err))
		return "", err
	}

	c.trackOutcome(name, nil)
	c.logPrompt(name, prompt, text)
	return text, nil
}

// GenerateImage renders an image for the prompt and returns the raw bytes.
func (c *Client) GenerateImage(ctx context.Context, name, prompt string) ([]byte, error) {
	c.mu.RLock()
	client := c.genaiClient
	modelName := c.modelName
	if profileModel, ok := c.profiles[name]; ok && profileModel != "" {
		modelName = profileModel
	}
	c.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}

	resp, err := client.Models.GenerateImages(ctx, modelName, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	})
	if err != nil {
		classified := llm.Classify(err)
		c.trackOutcome(name, classified)
		c.logPrompt(name, prompt, fmt.Sprintf("ERROR: %v", err))
		return nil, fmt.Errorf("generate image error: %w", classified)
	}

	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		c.trackOutcome(name, fmt.Errorf("no images returned"))
		c.logPrompt(name, prompt, "IMAGE_PARSE_ERROR: no images returned")
		return nil, fmt.Errorf("no images returned")
	}

	c.trackOutcome(name, nil)
	c.logPrompt(name, prompt, fmt.Sprintf("[image: %d bytes]", len(resp.GeneratedImages[0].Image.ImageBytes)))
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}

// HealthCheck verifies that the client is configured.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.apiKey == "" {
		return fmt.Errorf("gemini API key not configured")
	}
	if c.genaiClient == nil {
		return fmt.Errorf("gemini client not initialized")
	}
	return nil
}

// HasProfile checks if a model profile is configured for the intent.
func (c *Client) HasProfile(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	model, ok := c.profiles[name]
	return ok && model != ""
}

func (c *Client) logPrompt(name, prompt, response string) {
	if c.logPath == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return
	}

	f, err := os.OpenFile(c.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	entry := fmt.Sprintf("[%s] PROMPT: %s\nPROMPT_TEXT:\n%s\n\nRESPONSE:\n%s\n%s\n",
		timestamp, name, prompt, response, strings.Repeat("-", 80))

	_, _ = f.WriteString(entry)
}

func getResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

var _ llm.Provider = (*Client)(nil)
