package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/checkcall/internal/summary"
)

const defaultPostMessageURL = "https://slack.com/api/chat.postMessage"

// Poster sends dispatcher alerts to a Slack channel. Escalations still go
// through the human dispatcher on the call itself; this is the paper trail.
type Poster struct {
	token   string
	channel string
	client  *http.Client
	apiURL  string
	logger  *slog.Logger
}

func NewPoster(token, channel string, logger *slog.Logger) *Poster {
	return &Poster{
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiURL:  defaultPostMessageURL,
		logger:  logger,
	}
}

// PostEscalation alerts the channel that a call pivoted to the emergency
// protocol. The summary may be nil when the call is still in progress.
func (p *Poster) PostEscalation(ctx context.Context, callID, driverName, loadNumber string, sum *summary.EmergencySummary) error {
	text := formatEscalation(callID, driverName, loadNumber, sum)

	body, err := json.Marshal(map[string]any{
		"channel": p.channel,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(respBody, &slackResp); err != nil {
		return fmt.Errorf("parse slack response: %w", err)
	}
	if !slackResp.OK {
		return fmt.Errorf("slack error: %s", slackResp.Error)
	}

	p.logger.Info("posted escalation alert", "call_id", callID, "driver", driverName)
	return nil
}

func formatEscalation(callID, driverName, loadNumber string, sum *summary.EmergencySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: *Emergency escalation* — driver %s, load %s (call %s)\n", driverName, loadNumber, callID)
	if sum == nil {
		b.WriteString("Call still in progress; dispatcher handoff triggered.")
		return b.String()
	}
	fmt.Fprintf(&b, "Type: %s | Safety: %s | Injuries: %s\n", sum.EmergencyType, sum.SafetyStatus, sum.InjuryStatus)
	fmt.Fprintf(&b, "Location: %s | Load secure: %t", sum.EmergencyLocation, sum.LoadSecure)
	return b.String()
}
