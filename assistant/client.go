package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fusionchat/server/apperr"
	"github.com/fusionchat/server/config"
)

// Intent is the structured reply of the AI assistant. Type drives the
// client UI: navigation intents carry a URL, time/date intents get
// their response computed locally so they are always accurate.
type Intent struct {
	Type      string `json:"type"`
	UserInput string `json:"userInput"`
	Response  string `json:"response"`
	URL       string `json:"url,omitempty"`
}

// Assistant answers user commands in the user's configured persona.
type Assistant interface {
	Ask(ctx context.Context, assistantName, userName, command string) (*Intent, error)
}

// GeminiClient talks to a Gemini-style generateContent endpoint.
type GeminiClient struct {
	apiURL      string
	apiKey      string
	defaultName string
	httpClient  *http.Client
	logger      *zap.Logger

	now func() time.Time
}

func NewGeminiClient(cfg config.AssistantConfig, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		apiURL:      cfg.APIURL,
		apiKey:      cfg.APIKey,
		defaultName: cfg.DefaultName,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		now:         time.Now,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Ask sends the command to the model and post-processes the structured
// intent it returns.
func (g *GeminiClient) Ask(ctx context.Context, assistantName, userName, command string) (*Intent, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, apperr.Validation("command is required")
	}
	if assistantName == "" {
		assistantName = g.defaultName
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: buildPrompt(assistantName, userName, command)}},
		}},
	})
	if err != nil {
		return nil, apperr.Internal("encode assistant request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.apiURL+"?key="+url.QueryEscape(g.apiKey), bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal("build assistant request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream("assistant unavailable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		g.logger.Warn("assistant API error", zap.Int("status", resp.StatusCode))
		return nil, apperr.Upstream("assistant unavailable",
			fmt.Errorf("assistant API status %d", resp.StatusCode))
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, apperr.Upstream("assistant reply unreadable", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, apperr.Upstream("assistant returned no reply", nil)
	}

	intent, err := parseIntent(gr.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, err
	}
	g.applyIntentActions(intent)
	return intent, nil
}

func buildPrompt(assistantName, userName, command string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a friendly and knowledgeable AI companion created by %s. ", assistantName, userName)
	b.WriteString("You are witty, curious and engaging. Avoid robotic phrases like \"As an AI...\"; ")
	b.WriteString("if asked a personal question, invent a plausible preference and explain it. ")
	b.WriteString("Explain technical subjects clearly. Obey direct commands like \"open Google\" or \"what time is it?\".\n\n")
	b.WriteString("Your entire response must be a single valid JSON object, nothing else:\n")
	b.WriteString(`{"type": "general" | "technical_question" | "google_search" | "youtube_search" | "youtube_play" | "get_time" | "get_date" | "get_day" | "get_month" | "calculator_open" | "instagram_open" | "facebook_open" | "weather_show",`)
	b.WriteString(` "userInput": "<the core user command, with your name removed>",`)
	b.WriteString(` "response": "<your conversational, voice-friendly reply in persona>"}`)
	b.WriteString("\n\nUse technical_question for technical questions, general for conversation, and the action types for commands.\n\n")
	fmt.Fprintf(&b, "Analyze the following command from %s and produce the JSON object:\nUser Command: %q\n", userName, command)
	return b.String()
}

// parseIntent extracts the JSON object from the model's text, which may
// be wrapped in markdown code fences or surrounded by prose.
func parseIntent(text string) (*Intent, error) {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, apperr.Upstream("assistant reply had no structured intent", nil)
	}

	var intent Intent
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &intent); err != nil {
		return nil, apperr.Upstream("assistant reply had no structured intent", err)
	}
	if intent.Type == "" {
		intent.Type = "general"
	}
	return &intent, nil
}

// applyIntentActions fills in URLs for navigation intents and computes
// time/date answers locally.
func (g *GeminiClient) applyIntentActions(intent *Intent) {
	now := g.now()
	switch intent.Type {
	case "get_time":
		intent.Response = "The current time is " + now.Format("3:04 PM")
	case "get_date":
		intent.Response = "The current date is " + now.Format("January 2, 2006")
	case "get_day":
		intent.Response = "Today is " + now.Format("Monday")
	case "get_month":
		intent.Response = "The current month is " + now.Format("January")
	case "google_search":
		intent.URL = "https://www.google.com/search?q=" + url.QueryEscape(intent.UserInput)
	case "youtube_search", "youtube_play":
		intent.URL = "https://www.youtube.com/results?search_query=" + url.QueryEscape(intent.UserInput)
	case "calculator_open":
		intent.URL = "https://www.google.com/search?q=calculator"
		intent.Response = "Opening a calculator for you."
	case "instagram_open":
		intent.URL = "https://www.instagram.com"
	case "facebook_open":
		intent.URL = "https://www.facebook.com"
	}
}
