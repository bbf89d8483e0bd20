package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier sends alerts to a Slack webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, alert Alert) error {
	color := "#36a64f" // green
	switch alert.Level {
	case LevelWarning:
		color = "#ff9900" // orange
	case LevelCritical:
		color = "#ff0000" // red
	case LevelExceeded:
		color = "#cc0000" // dark red
	}

	fields := []slackField{
		{Title: "Kind", Value: string(alert.Kind), Short: true},
		{Title: "Condition", Value: alert.Payload.Label, Short: true},
	}
	for _, it := range alert.Items {
		fields = append(fields, slackField{Title: it.Name, Value: it.Detail, Short: true})
	}

	payload := slackPayload{
		Channel: s.channel,
		Attachments: []slackAttachment{
			{
				Color:  color,
				Title:  alert.Title,
				Text:   alert.Message,
				Fields: fields,
				Footer: "Spend Guardian",
				Ts:     alert.CreatedAt.Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
