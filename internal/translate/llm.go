package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"meal-planner/internal/llm"
	"meal-planner/internal/metrics"
	"meal-planner/internal/shared"
)

const llmPrompt = `You translate recipe text from English to natural Korean used in Korean cookbooks.
Translate every string in the JSON array below. Keep numbers and measurements as they are.
Return only a JSON object of the form {"translations": ["...", "..."]} with exactly %d strings in the same order.

%s`

// LLM translates through a TextGenerator with a JSON in/out prompt.
type LLM struct {
	gen      llm.TextGenerator
	recorder metrics.Recorder
}

func NewLLM(gen llm.TextGenerator, rec metrics.Recorder) *LLM {
	if rec == nil {
		rec = metrics.Discard{}
	}
	return &LLM{gen: gen, recorder: rec}
}

func (l *LLM) Ready() bool  { return l.gen != nil }
func (l *LLM) Name() string { return "llm" }

func (l *LLM) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	out := append([]string(nil), texts...)
	idx := pending(texts)
	if len(idx) == 0 {
		return out, nil
	}

	batch := make([]string, len(idx))
	for i, j := range idx {
		batch[i] = texts[j]
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal texts: %w", err)
	}

	start := time.Now()
	resp, err := l.gen.GenerateContent(ctx, fmt.Sprintf(llmPrompt, len(batch), payload))
	if err != nil {
		return nil, fmt.Errorf("failed to generate translation: %w", err)
	}
	meta := shared.CallMeta{Operation: "translation", Usage: resp.Usage, Latency: time.Since(start)}
	if err := l.recorder.RecordMeta(ctx, meta); err != nil {
		log.Printf("failed to record translation usage: %v", err)
	}

	var parsed struct {
		Translations []string `json:"translations"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse translation response: %w", err)
	}
	if len(parsed.Translations) != len(batch) {
		return nil, fmt.Errorf("llm returned %d translations for %d texts", len(parsed.Translations), len(batch))
	}
	for i, j := range idx {
		out[j] = parsed.Translations[i]
	}
	return out, nil
}
