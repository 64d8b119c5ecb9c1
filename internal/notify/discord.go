package notify

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// discordEmbedColor is the accent stripe on run-completion embeds.
const discordEmbedColor = 0x2ecc71

// DiscordSender delivers notifications via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts an embed to the configured webhook. Run summaries arrive as
// comma-separated "name: value" pairs and render as inline embed fields;
// anything else falls back to the embed description.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	embed := discordEmbed{
		Title:     title,
		Color:     discordEmbedColor,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if fields := summaryFields(message); len(fields) > 0 {
		embed.Fields = fields
	} else {
		embed.Description = message
	}

	payload := map[string]any{"embeds": []discordEmbed{embed}}
	return postJSON(ctx, d.client, "discord", d.webhookURL, payload)
}

// summaryFields splits a "name: value, name: value" summary into embed
// fields. Returns nil when any segment does not fit the shape.
func summaryFields(message string) []discordField {
	segments := strings.Split(message, ", ")
	fields := make([]discordField, 0, len(segments))
	for _, seg := range segments {
		name, value, ok := strings.Cut(seg, ": ")
		if !ok || name == "" || value == "" {
			return nil
		}
		fields = append(fields, discordField{Name: name, Value: value, Inline: true})
	}
	return fields
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
