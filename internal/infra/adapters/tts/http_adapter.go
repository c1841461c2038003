package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"edu-ai-generation/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.SpeechSynthesizer = (*HTTPAdapter)(nil)

// HTTPAdapter calls an OpenAI-compatible /audio/speech endpoint and writes
// the audio to the asset directory, returning a stable reference derived from
// the narration text. Re-synthesizing identical text is a no-op.
type HTTPAdapter struct {
	apiKey   string
	base     string
	voice    string
	assetDir string
	client   *http.Client
}

func NewHTTPAdapter(apiKey, baseURL, voice, assetDir string, timeout time.Duration) (*HTTPAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("synthesis api key empty")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if voice == "" {
		voice = "alloy"
	}
	if assetDir == "" {
		assetDir = "audio-assets"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		return nil, err
	}
	return &HTTPAdapter{
		apiKey:   apiKey,
		base:     baseURL,
		voice:    voice,
		assetDir: assetDir,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (a *HTTPAdapter) Synthesize(ctx context.Context, text string) (string, error) {
	sum := sha256.Sum256([]byte(a.voice + "\x00" + text))
	ref := "audio/" + hex.EncodeToString(sum[:16]) + ".mp3"
	path := filepath.Join(a.assetDir, filepath.Base(ref))
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}

	reqBody := struct {
		Model string `json:"model"`
		Input string `json:"input"`
		Voice string `json:"voice"`
	}{Model: "tts-1", Input: text, Voice: a.voice}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/audio/speech", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("synthesis http %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", err
	}
	return ref, nil
}
