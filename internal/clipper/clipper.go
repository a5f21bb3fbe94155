// Package clipper extracts a recipe from a web page URL, preferring the
// page's schema.org JSON-LD and falling back to the LLM.
package clipper

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"text/template"
	"time"

	"meal-planner/internal/apperr"
	"meal-planner/internal/cache"
	"meal-planner/internal/llm"
	"meal-planner/internal/metrics"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"

	"github.com/PuerkitoBio/goquery"
)

//go:embed extractor_prompt.md
var extractorPrompt string

var promptTmpl = template.Must(template.New("extractor").Parse(extractorPrompt))

const (
	cacheKeyPrefix   = "url_extraction:cache:"
	cacheTTL         = 24 * time.Hour
	fetchTimeout     = 30 * time.Second
	maxBodyBytes     = 5 << 20
	maxPromptChars   = 50000
	schemaConfidence = 0.95
	llmConfidence    = 0.75
	userAgent        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Result is the response of an extraction.
type Result struct {
	Success    bool                `json:"success"`
	Recipe     *recipe.CreateInput `json:"recipe"`
	Confidence float64             `json:"confidence"`
}

// Clipper fetches recipe pages and turns them into create payloads.
type Clipper struct {
	textGen    llm.TextGenerator
	store      cache.Store
	limiter    *cache.Limiter
	recorder   metrics.Recorder
	guard      *urlGuard
	httpClient *http.Client
}

// NewClipper creates a Clipper. textGen may be nil, which disables the LLM
// fallback; store and limiter may be nil to disable caching and quotas.
func NewClipper(textGen llm.TextGenerator, store cache.Store, limiter *cache.Limiter, recorder metrics.Recorder) *Clipper {
	if recorder == nil {
		recorder = metrics.Discard{}
	}
	guard := newURLGuard()
	return &Clipper{
		textGen:    textGen,
		store:      store,
		limiter:    limiter,
		recorder:   recorder,
		guard:      guard,
		httpClient: guard.client(fetchTimeout),
	}
}

// Extract returns the recipe found at rawURL for userID.
func (c *Clipper) Extract(ctx context.Context, userID, rawURL string) (*Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if _, err := c.guard.validate(ctx, rawURL); err != nil {
		return nil, err
	}
	succeeded := false
	if c.limiter != nil {
		if err := c.limiter.Allow(ctx, cache.URLExtraction, userID); err != nil {
			return nil, err
		}
		// Cache hits and failures hand the unit back unless failures are counted.
		defer func() {
			if succeeded {
				return
			}
			if err := c.limiter.Release(ctx, cache.URLExtraction, userID); err != nil {
				log.Printf("Failed to release extraction quota: %v", err)
			}
		}()
	}

	key := cacheKey(rawURL)
	if c.store != nil {
		var hit Result
		if ok, err := cache.GetJSON(ctx, c.store, key, &hit); err != nil {
			log.Printf("Failed to read extraction cache: %v", err)
		} else if ok {
			log.Printf("Extraction cache hit for %s", rawURL)
			return &hit, nil
		}
	}

	page, err := c.fetch(ctx, rawURL)
	if err != nil {
		log.Printf("Failed to fetch %s: %v", rawURL, err)
		if ae, ok := apperr.As(err); ok {
			return nil, ae
		}
		return nil, apperr.URLExtraction(fmt.Sprintf("Could not fetch the URL: %v", err))
	}

	in, confidence, err := c.extract(ctx, rawURL, page)
	if err != nil {
		return nil, err
	}

	res := &Result{Success: true, Recipe: in, Confidence: confidence}
	succeeded = true
	if c.store != nil {
		if err := cache.SetJSON(ctx, c.store, key, res, cacheTTL); err != nil {
			log.Printf("Failed to cache extraction: %v", err)
		}
	}
	return res, nil
}

func (c *Clipper) extract(ctx context.Context, sourceURL string, page []byte) (*recipe.CreateInput, float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, 0, apperr.URLExtraction("Could not parse the page")
	}

	if in := extractJSONLD(doc); in != nil {
		log.Printf("Schema.org recipe found at %s", sourceURL)
		if err := finalize(in, sourceURL); err != nil {
			return nil, 0, err
		}
		return in, schemaConfidence, nil
	}

	if c.textGen == nil {
		return nil, 0, apperr.URLExtraction("No structured recipe found on the page")
	}
	log.Printf("Falling back to LLM extraction for %s", sourceURL)
	in, err := c.extractWithLLM(ctx, sourceURL, cleanText(doc))
	if err != nil {
		return nil, 0, err
	}
	if err := finalize(in, sourceURL); err != nil {
		return nil, 0, err
	}
	return in, llmConfidence, nil
}

func (c *Clipper) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if _, err := c.guard.validate(ctx, resp.Request.URL.String()); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, apperr.URLExtraction("The page is too large")
	}
	return body, nil
}

var whitespace = regexp.MustCompile(`\s+`)

// cleanText strips markup that carries no recipe content to save LLM tokens.
func cleanText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads, noscript, svg, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})
	text := strings.TrimSpace(whitespace.ReplaceAllString(doc.Find("body").Text(), " "))
	if r := []rune(text); len(r) > maxPromptChars {
		text = string(r[:maxPromptChars]) + "\n... (truncated)"
	}
	return text
}

func (c *Clipper) extractWithLLM(ctx context.Context, sourceURL, content string) (*recipe.CreateInput, error) {
	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, struct{ URL, Content string }{sourceURL, content}); err != nil {
		return nil, fmt.Errorf("failed to build extraction prompt: %w", err)
	}

	start := time.Now()
	resp, err := c.textGen.GenerateContent(ctx, buf.String())
	if err != nil {
		log.Printf("LLM extraction failed for %s: %v", sourceURL, err)
		return nil, apperr.URLExtraction("AI extraction failed")
	}
	meta := shared.CallMeta{Operation: "url_extraction", Usage: resp.Usage, Latency: time.Since(start)}
	if err := c.recorder.RecordMeta(ctx, meta); err != nil {
		log.Printf("failed to record extraction usage: %v", err)
	}

	var in recipe.CreateInput
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp.Content)), &in); err != nil {
		return nil, apperr.URLExtraction(fmt.Sprintf("Failed to parse recipe data: %v", err))
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.URLExtraction("Recipe title is missing")
	}
	return &in, nil
}

// finalize normalizes an extracted payload and checks it can be saved.
func finalize(in *recipe.CreateInput, sourceURL string) error {
	in.SourceURL = &sourceURL
	in.ExternalSource, in.ExternalID = nil, nil
	if r := []rune(strings.TrimSpace(in.Title)); len(r) > 200 {
		in.Title = string(r[:200])
	}
	if in.Servings <= 0 {
		in.Servings = 4
	}
	in.Servings = min(in.Servings, recipe.MaxServings)
	switch in.Difficulty {
	case recipe.DifficultyEasy, recipe.DifficultyMedium, recipe.DifficultyHard:
	default:
		in.Difficulty = recipe.DifficultyMedium
	}
	in.Categories = recipe.MapCategories(in.Categories)
	in.Tags = cleanTags(in.Tags)
	if in.PrepTimeMinutes != nil && *in.PrepTimeMinutes < 0 {
		in.PrepTimeMinutes = nil
	}
	if in.CookTimeMinutes != nil && *in.CookTimeMinutes < 0 {
		in.CookTimeMinutes = nil
	}

	ings := in.Ingredients[:0]
	for _, ing := range in.Ingredients {
		ing.Name = strings.TrimSpace(ing.Name)
		if ing.Name == "" {
			continue
		}
		if ing.Amount <= 0 {
			ing.Amount = 1
		}
		if strings.TrimSpace(ing.Unit) == "" {
			ing.Unit = recipe.DefaultUnit
		}
		ing.OrderIndex = len(ings)
		ings = append(ings, ing)
	}
	in.Ingredients = ings
	if len(in.Ingredients) == 0 {
		return apperr.URLExtraction("No ingredients found on this page. Please use the URL of a single recipe page.")
	}

	steps := in.Instructions[:0]
	for _, st := range in.Instructions {
		st.Description = strings.TrimSpace(st.Description)
		if st.Description == "" {
			continue
		}
		st.StepNumber = len(steps) + 1
		steps = append(steps, st)
	}
	in.Instructions = steps

	if err := recipe.ValidateCreate(in); err != nil {
		return apperr.URLExtraction(fmt.Sprintf("Failed to convert recipe data: %v", err))
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := []string{}
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" && len(out) < 20 {
			out = append(out, t)
		}
	}
	return out
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
