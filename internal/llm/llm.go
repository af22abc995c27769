package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/shamescroll/internal/models"
	"github.com/joescharf/shamescroll/internal/report"
)

// DefaultModel is used when anthropic.model is not configured.
const DefaultModel = "claude-sonnet-4-5"

// Reflection is a short coaching note on a report.
type Reflection struct {
	Summary    string   `json:"summary"`
	Wins       []string `json:"wins"`
	Suggestion string   `json:"suggestion"`
}

// Client wraps the Anthropic API for report reflections.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = DefaultModel
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildReflectPrompt constructs the system and user prompts for a reflection
// on rep and the current streak.
func buildReflectPrompt(rep report.Report, streak models.StreakData) (system string, user string) {
	system = `You are a supportive but honest coach helping someone cut down on doomscrolling. Given a summary of their recent browsing on distracting sites and their focus sessions, return a JSON object with exactly these fields:
- "summary": 1-2 sentences describing the period
- "wins": an array of 0-3 short strings naming concrete things that went well
- "suggestion": one specific, actionable suggestion for the coming days

Rules:
- Be kind, never preachy; mention numbers when they help
- Scroll times are in seconds; convert to minutes or hours in your text
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Period: %s to %s (%d days)\n", rep.From, rep.To, len(rep.Days))
	fmt.Fprintf(&sb, "Total scroll time: %ds (average %ds/day)\n", rep.TotalScrollTime, rep.AverageScrollTime)
	if rep.BestDay != "" {
		fmt.Fprintf(&sb, "Lowest scroll day: %s\n", rep.BestDay)
	}
	fmt.Fprintf(&sb, "Focus sessions completed: %d (%d minutes)\n", rep.TotalFocusSessions, rep.FocusMinutes())
	fmt.Fprintf(&sb, "Focus streak: current %d days, longest %d days\n", streak.Current, streak.Longest)

	sb.WriteString("\nPer day (date, scroll seconds, focus sessions):\n")
	for _, d := range rep.Days {
		fmt.Fprintf(&sb, "- %s, %d, %d\n", d.Date, d.ScrollTime, d.FocusSessions)
	}

	if len(rep.Missions) > 0 {
		missions := append([]models.CompletedMission(nil), rep.Missions...)
		sort.SliceStable(missions, func(i, j int) bool { return missions[i].Timestamp.Before(missions[j].Timestamp) })
		sb.WriteString("\nCompleted missions:\n")
		for _, m := range missions {
			fmt.Fprintf(&sb, "- %s (%s)\n", m.Text, (time.Duration(m.Duration) * time.Millisecond).Round(time.Minute))
		}
	}
	user = sb.String()
	return
}

// stripFence removes a surrounding markdown code fence, if any.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

func parseReflection(text string) (*Reflection, error) {
	text = stripFence(text)
	var r Reflection
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if r.Summary == "" {
		return nil, fmt.Errorf("LLM response missing summary")
	}
	return &r, nil
}

// Reflect sends the report to the LLM and returns a reflection.
func (c *Client) Reflect(ctx context.Context, rep report.Report, streak models.StreakData) (*Reflection, error) {
	systemPrompt, userPrompt := buildReflectPrompt(rep, streak)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return parseReflection(text)
}
