package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/config"
)

// ErrNotConfigured signals that the corresponding speech endpoint is unset.
// Callers degrade to text-only operation rather than failing the session.
var ErrNotConfigured = errors.New("speech service not configured")

// Audio is a synthesized clip plus its content type.
type Audio struct {
	Data        []byte
	ContentType string
}

// Client forwards text-to-speech and speech-to-text requests to the
// external audio services.
type Client struct {
	ttsEndpoint  string
	sttEndpoint  string
	apiKey       string
	defaultVoice string
	http         *http.Client
	log          *zap.Logger
}

// NewClient builds a speech client from configuration. Either endpoint may
// be empty; the matching operation then returns ErrNotConfigured.
func NewClient(cfg config.SpeechConfig, log *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		ttsEndpoint:  strings.TrimRight(cfg.TTSEndpoint, "/"),
		sttEndpoint:  strings.TrimRight(cfg.STTEndpoint, "/"),
		apiKey:       cfg.APIKey,
		defaultVoice: cfg.VoiceID,
		http:         &http.Client{Timeout: timeout},
		log:          log,
	}
}

// TTSEnabled reports whether synthesis requests can be forwarded.
func (c *Client) TTSEnabled() bool { return c.ttsEndpoint != "" }

// STTEnabled reports whether transcription requests can be forwarded.
func (c *Client) STTEnabled() bool { return c.sttEndpoint != "" }

// Synthesize forwards text to the TTS service and returns the audio clip.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string) (*Audio, error) {
	if !c.TTSEnabled() {
		return nil, ErrNotConfigured
	}
	if voiceID == "" {
		voiceID = c.defaultVoice
	}

	payload, err := json.Marshal(map[string]string{"text": text, "voice_id": voiceID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ttsEndpoint+"/text_to_speech", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	c.log.Debug("forwarding tts request",
		zap.Int("text_length", len(text)),
		zap.String("voice_id", voiceID))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tts service returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &Audio{Data: data, ContentType: contentType}, nil
}

// Transcribe forwards an audio clip to the STT service and returns the
// recognized text.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if !c.STTEnabled() {
		return "", ErrNotConfigured
	}
	if filename == "" {
		filename = "audio.webm"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sttEndpoint+"/speech_to_text", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stt service returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Success bool   `json:"success"`
		Text    string `json:"text"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode stt response: %w", err)
	}
	if !decoded.Success {
		return "", fmt.Errorf("stt service error: %s", decoded.Error)
	}
	return decoded.Text, nil
}

// TTSHealthy probes the TTS service's health endpoint.
func (c *Client) TTSHealthy(ctx context.Context) bool {
	return c.healthy(ctx, c.ttsEndpoint)
}

// STTHealthy probes the STT service's health endpoint.
func (c *Client) STTHealthy(ctx context.Context) bool {
	return c.healthy(ctx, c.sttEndpoint)
}

func (c *Client) healthy(ctx context.Context, endpoint string) bool {
	if endpoint == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
