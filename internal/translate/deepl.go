package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DeepL calls the DeepL v2 translate endpoint, English to Korean.
type DeepL struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewDeepL(apiKey, endpoint string) *DeepL {
	return &DeepL{
		apiKey:     apiKey,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (d *DeepL) Ready() bool  { return d.apiKey != "" }
func (d *DeepL) Name() string { return "deepl" }

func (d *DeepL) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	out := append([]string(nil), texts...)
	idx := pending(texts)
	if len(idx) == 0 {
		return out, nil
	}

	batch := make([]string, len(idx))
	for i, j := range idx {
		batch[i] = texts[j]
	}
	body, err := json.Marshal(map[string]any{
		"text":        batch,
		"source_lang": "EN",
		"target_lang": "KO",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deepl request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create deepl request: %w", err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call deepl: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return nil, fmt.Errorf("deepl authentication failed")
	case 456:
		return nil, fmt.Errorf("deepl quota exceeded")
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("deepl api error: status=%d body=%s", resp.StatusCode, string(b))
	}

	var parsed struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode deepl response: %w", err)
	}
	if len(parsed.Translations) != len(batch) {
		return nil, fmt.Errorf("deepl returned %d translations for %d texts", len(parsed.Translations), len(batch))
	}
	for i, j := range idx {
		out[j] = parsed.Translations[i].Text
	}
	return out, nil
}
