package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/rhamenator/ai-scraping-defense-sub001/internal/httpclient"
)

// llmAdapter prompts a local chat-completion-shaped endpoint and parses
// the first floating point number out of the assistant's reply.
type llmAdapter struct {
	url     string
	timeout time.Duration
	client  *httpclient.Client
}

func newLLMAdapter(url string, timeout time.Duration) (Adapter, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &llmAdapter{url: url, timeout: timeout, client: httpclient.New(httpclient.Config{RequestTimeout: timeout})}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

var firstFloat = regexp.MustCompile(`-?\d+(\.\d+)?`)

func (a *llmAdapter) Classify(ctx context.Context, features map[string]float64) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := buildPrompt(features)
	body, err := json.Marshal(chatCompletionRequest{Messages: []chatMessage{
		{Role: "system", Content: "You score how likely a web request is an automated scraper, from 0 to 1. Reply with only the number."},
		{Role: "user", Content: prompt},
	}})
	if err != nil {
		return 0, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("model: llm endpoint status %d", resp.StatusCode)
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, false, err
	}
	if len(out.Choices) == 0 {
		return 0, false, fmt.Errorf("model: llm endpoint returned no choices")
	}

	match := firstFloat.FindString(out.Choices[0].Message.Content)
	if match == "" {
		return 0, false, fmt.Errorf("model: no numeric score found in llm reply")
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false, err
	}
	return clamp01(v), true, nil
}

func (a *llmAdapter) Close() error { return nil }

func buildPrompt(features map[string]float64) string {
	b, _ := json.Marshal(features)
	return "Request features: " + string(b)
}
