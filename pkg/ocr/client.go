// Package ocr reads serial numbers off device label photos using an
// Ollama-compatible vision model.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"inventory-assistant-be/pkg/inventory"
	"inventory-assistant-be/pkg/validation"
)

const serialPrompt = `Find the SERIAL NUMBER on this device image.

Look for labels: "Serial Number", "S/N", "SN" or "Service Tag".

Serial numbers are typically 8-15 characters long and mix letters and numbers,
for example ABCD1234, CN-04YMDT-FCC00-97Q-ATLB-A05, 9B2032AC0520.

NOT serial numbers: model names (BV650I-GR, M404dn), MAC addresses, part numbers (P/N).

If the serial number spans several lines, join them without spaces.
Keep the exact case and symbols. Choose the longer number if there are several.

Answer format:
Serial Number: [EXACT_SERIAL_NUMBER]`

type Client struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

var _ inventory.Recognizer = (*Client)(nil)

func NewClient(baseURL, modelName string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		ModelName: modelName,
		Client:    &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// ExtractSerial returns inventory.ErrNoSerial when the model answered but
// nothing serial-shaped was found.
func (c *Client) ExtractSerial(ctx context.Context, imagePath string) (string, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	text, err := c.chat(ctx, serialPrompt, base64.StdEncoding.EncodeToString(img))
	if err != nil {
		return "", err
	}
	serial, ok := ParseSerial(text)
	if !ok {
		return "", inventory.ErrNoSerial
	}
	return serial, nil
}

func (c *Client) chat(ctx context.Context, prompt, image string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:    c.ModelName,
		Messages: []chatMessage{{Role: "user", Content: prompt, Images: []string{image}}},
		Stream:   false,
		Options:  &chatOptions{Temperature: 0, NumPredict: 100},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ocr error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return out.Message.Content, nil
}

var (
	answerLine   = regexp.MustCompile(`(?i)(?:serial\s*number|s/n)\s*:\s*(.+)`)
	labelPrefix  = regexp.MustCompile(`(?i)^\s*(?:serial\s*number|serial\s*no\.?|serial\s*#|s/?n|sn|service\s*tag)\s*[:#\-]?\s*`)
	notFoundText = map[string]bool{"unknown": true, "not found": true, "n/a": true, "none": true}
)

// ParseSerial pulls the serial out of the model's answer.
func ParseSerial(text string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		m := answerLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		serial := strings.Trim(strings.TrimSpace(m[1]), "\"'[](){}*`")
		serial = strings.TrimSpace(labelPrefix.ReplaceAllString(serial, ""))
		if notFoundText[strings.ToLower(serial)] {
			return "", false
		}
		if validation.LooksLikeSerial(serial) {
			return serial, true
		}
	}
	return "", false
}
