package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	pushEndpoint      = "https://api.line.me/v2/bot/message/push"
	broadcastEndpoint = "https://api.line.me/v2/bot/message/broadcast"

	// LINE rejects text messages longer than this many characters.
	maxMessageLength = 5000
)

// LineClient delivers text messages over the LINE Messaging API. With
// broadcast enabled messages go to every friend of the channel; otherwise
// they are pushed to the configured user id.
type LineClient struct {
	token     string
	userID    string
	broadcast bool
	client    *http.Client
}

func NewLineClient(token, userID string, broadcast bool, client *http.Client) *LineClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &LineClient{
		token:     token,
		userID:    userID,
		broadcast: broadcast,
		client:    client,
	}
}

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type pushPayload struct {
	To       string        `json:"to,omitempty"`
	Messages []lineMessage `json:"messages"`
}

// Send delivers the text, splitting it into multiple messages when it exceeds
// the API's length limit. Chunks are sent in order; the first delivery error
// aborts the rest.
func (c *LineClient) Send(text string) error {
	if c.token == "" {
		return fmt.Errorf("line channel access token is not configured")
	}
	if !c.broadcast && c.userID == "" {
		return fmt.Errorf("line user id is not configured")
	}

	for _, chunk := range SplitMessage(text, maxMessageLength) {
		if err := c.sendOne(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *LineClient) sendOne(text string) error {
	endpoint := pushEndpoint
	payload := pushPayload{
		Messages: []lineMessage{{Type: "text", Text: text}},
	}
	if c.broadcast {
		endpoint = broadcastEndpoint
	} else {
		payload.To = c.userID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("line api returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// SplitMessage cuts text into chunks of at most limit characters. Splits
// count runes, not bytes: the limit is the API's character limit and most of
// the payload is multibyte Japanese text.
func SplitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// BuildRunSummary formats the notification sent after a scheduled run.
func BuildRunSummary(jobName, searchURL, resultURL string, newCount int) string {
	header := "【SUUMOスクレイピング完了】"
	if jobName != "" {
		header += "\nジョブ: " + jobName
	}
	return fmt.Sprintf("%s\n新着物件: %d件\n検索URL: %s\n結果: %s",
		header, newCount, searchURL, resultURL)
}
