// Package deepgram transcribes Telegram voice notes through the Deepgram
// pre-recorded listen endpoint.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoSpeech means the audio transcribed to an empty string. Callers
// tell the user nothing was recognized instead of creating an empty task.
var ErrNoSpeech = errors.New("deepgram: no speech recognized")

const defaultModel = "nova-3"

type Client struct {
	BaseURL string
	APIKey  string
	// Model defaults to nova-3, which handles Russian.
	Model  string
	HTTP   *http.Client
	Logger *slog.Logger
}

func New(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: "https://api.deepgram.com/v1",
		APIKey:  apiKey,
		Model:   defaultModel,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type listenResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
			DetectedLanguage string `json:"detected_language"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcription is the text plus the language Deepgram detected, which
// feeds the parser's language hint.
type Transcription struct {
	Text     string
	Language string
}

// Transcribe sends raw audio and returns the first alternative of the
// first channel. mimeType describes the payload; Telegram voice notes
// are "audio/ogg;codecs=opus".
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (Transcription, error) {
	if mimeType == "" {
		mimeType = "audio/ogg;codecs=opus"
	}
	model := c.Model
	if model == "" {
		model = defaultModel
	}

	q := url.Values{}
	q.Set("model", model)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("detect_language", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/listen?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return Transcription{}, err
	}
	req.Header.Set("Authorization", "Token "+c.APIKey)
	req.Header.Set("Content-Type", mimeType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Transcription{}, fmt.Errorf("deepgram: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transcription{}, fmt.Errorf("deepgram: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Transcription{}, fmt.Errorf("deepgram: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out listenResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Transcription{}, fmt.Errorf("deepgram: decode response: %w", err)
	}

	if len(out.Results.Channels) == 0 || len(out.Results.Channels[0].Alternatives) == 0 {
		return Transcription{}, ErrNoSpeech
	}
	channel := out.Results.Channels[0]
	text := strings.TrimSpace(channel.Alternatives[0].Transcript)
	if text == "" {
		return Transcription{}, ErrNoSpeech
	}

	if c.Logger != nil {
		c.Logger.Info("voice_transcribed", "chars", len([]rune(text)), "language", channel.DetectedLanguage)
	}
	return Transcription{Text: text, Language: channel.DetectedLanguage}, nil
}
