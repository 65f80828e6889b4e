package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"homewright/config"
)

// GeneratedArticle is the structured output the LLM must produce for a
// single blog post.
type GeneratedArticle struct {
	Title           string   `json:"title"`
	Excerpt         string   `json:"excerpt"`
	Content         string   `json:"content"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
}

// ContentGenerator calls an OpenAI-style chat-completions endpoint and
// decodes the response into a GeneratedArticle. The LLM itself is an
// external capability; everything past the JSON boundary is a
// generation failure, never a partial article.
type ContentGenerator struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
	stubMode   bool
}

func NewContentGenerator(cfg config.LLMConfig) *ContentGenerator {
	return &ContentGenerator{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		// Hard timeout so a hung completion becomes a recorded failure
		// instead of a stuck scheduler tick
		httpClient: &http.Client{Timeout: 60 * time.Second},
		stubMode:   cfg.StubMode,
	}
}

const systemPrompt = "You are the content writer for a custom home builder's blog. " +
	"Write practical, locally-grounded articles for prospective home buyers. " +
	"Respond only with JSON matching the provided schema."

var articleSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"title":            map[string]interface{}{"type": "string"},
		"excerpt":          map[string]interface{}{"type": "string"},
		"content":          map[string]interface{}{"type": "string"},
		"category":         map[string]interface{}{"type": "string"},
		"tags":             map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		"meta_title":       map[string]interface{}{"type": "string"},
		"meta_description": map[string]interface{}{"type": "string"},
	},
	"required":             []string{"title", "excerpt", "content", "category", "tags", "meta_title", "meta_description"},
	"additionalProperties": false,
}

// Generate produces one article for the given topic.
func (g *ContentGenerator) Generate(ctx context.Context, topic string) (*GeneratedArticle, error) {
	if g.stubMode {
		return g.stubArticle(topic), nil
	}

	reqBody := map[string]interface{}{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": fmt.Sprintf("Write a blog article about: %s", topic)},
		},
		"response_format": map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   "blog_article",
				"strict": true,
				"schema": articleSchema,
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm returned status %d: %s", resp.StatusCode, string(body))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}

	var article GeneratedArticle
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &article); err != nil {
		return nil, fmt.Errorf("llm output is not valid article JSON: %w", err)
	}
	if err := validateArticle(&article); err != nil {
		return nil, err
	}
	return &article, nil
}

func validateArticle(a *GeneratedArticle) error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("llm output missing title")
	}
	if strings.TrimSpace(a.Content) == "" {
		return fmt.Errorf("llm output missing content")
	}
	if a.Category == "" {
		a.Category = "Home Building"
	}
	return nil
}

func (g *ContentGenerator) stubArticle(topic string) *GeneratedArticle {
	return &GeneratedArticle{
		Title:           topic,
		Excerpt:         "A practical look at " + strings.ToLower(topic) + " for families planning a custom build.",
		Content:         "<p>Planning a custom home raises the same questions for nearly every family, and " + strings.ToLower(topic) + " is high on the list. This article walks through what we tell clients in our first design meeting.</p>",
		Category:        "Home Building",
		Tags:            []string{"custom homes", "planning"},
		MetaTitle:       topic + " | Homewright Builders",
		MetaDescription: "What to know about " + strings.ToLower(topic) + " when planning a custom home.",
	}
}
