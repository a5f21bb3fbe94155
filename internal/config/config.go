package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the configuration for the application.
type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	PublicBaseURL string
	CORSOrigins   []string
	// Secure, SameSite=None refresh cookie for cross-site HTTPS frontends
	CookieSecure bool
	IPRate       float64
	IPBurst      int

	// Auth
	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	BcryptCost       int
	LoginAttempts    int
	LoginWindow      time.Duration

	// Daily quotas
	URLExtractionDaily  int
	ExternalSearchDaily int
	CountFailedAttempts bool

	MealTypeFallback []string

	// TTF with Hangul glyphs for shopping list PDFs; core fonts are used when empty
	PDFFontPath string

	// External recipe providers
	SpoonacularAPIKey     string
	TheMealDBAPIKey       string
	FoodSafetyKoreaAPIKey string
	MafraAPIKey           string

	// Translation
	TranslationProvider string
	DeepLAPIKey         string
	DeepLAPIURL         string

	// LLM
	LLMProvider  string
	GeminiAPIKey string
	GroqAPIKey   string

	// Telegram Config
	TelegramBotToken     string
	TelegramReportChatID int64
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET_KEY")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable not set")
	}

	refreshSecret := os.Getenv("JWT_REFRESH_SECRET_KEY")
	if refreshSecret == "" {
		// Fallback to the access secret if only one is provided
		refreshSecret = jwtSecret
	}

	bcryptCost, err := intEnv("BCRYPT_COST", 12)
	if err != nil {
		return nil, err
	}
	if bcryptCost < 4 || bcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", bcryptCost)
	}

	accessMinutes, err := intEnv("ACCESS_TOKEN_EXPIRE_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	refreshDays, err := intEnv("REFRESH_TOKEN_EXPIRE_DAYS", 7)
	if err != nil {
		return nil, err
	}
	loginAttempts, err := intEnv("RATE_LIMIT_LOGIN_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	loginWindow, err := intEnv("RATE_LIMIT_LOGIN_WINDOW_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	urlDaily, err := intEnv("RATE_LIMIT_URL_EXTRACTION_DAILY", 50)
	if err != nil {
		return nil, err
	}
	searchDaily, err := intEnv("RATE_LIMIT_EXTERNAL_SEARCH_DAILY", 20)
	if err != nil {
		return nil, err
	}

	countFailures := true
	if v := os.Getenv("RATE_LIMIT_COUNT_FAILURES"); v != "" {
		countFailures, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_COUNT_FAILURES %q: %w", v, err)
		}
	}

	cookieSecure := false
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		cookieSecure, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid COOKIE_SECURE %q: %w", v, err)
		}
	}

	ipRate := 10.0
	if v := os.Getenv("RATE_LIMIT_PER_SECOND"); v != "" {
		ipRate, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_PER_SECOND %q: %w", v, err)
		}
	}
	ipBurst, err := intEnv("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, err
	}

	// Telegram Config (optional, only used for batch reports)
	var reportChatID int64
	if v := os.Getenv("TELEGRAM_REPORT_CHAT_ID"); v != "" {
		reportChatID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_REPORT_CHAT_ID %q: %w", v, err)
		}
	}

	return &Config{
		Port:                  stringEnv("PORT", "8080"),
		DatabaseURL:           databaseURL,
		RedisURL:              stringEnv("REDIS_URL", "redis://localhost:6379/0"),
		PublicBaseURL:         strings.TrimRight(stringEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		CORSOrigins:           listEnv("CORS_ORIGINS", "http://localhost:3000"),
		CookieSecure:          cookieSecure,
		IPRate:                ipRate,
		IPBurst:               ipBurst,
		JWTSecret:             jwtSecret,
		JWTRefreshSecret:      refreshSecret,
		AccessTokenTTL:        time.Duration(accessMinutes) * time.Minute,
		RefreshTokenTTL:       time.Duration(refreshDays) * 24 * time.Hour,
		BcryptCost:            bcryptCost,
		LoginAttempts:         loginAttempts,
		LoginWindow:           time.Duration(loginWindow) * time.Minute,
		URLExtractionDaily:    urlDaily,
		ExternalSearchDaily:   searchDaily,
		CountFailedAttempts:   countFailures,
		MealTypeFallback:      listEnv("MEAL_TYPE_FALLBACK", "lunch,dinner"),
		PDFFontPath:           os.Getenv("PDF_FONT_PATH"),
		SpoonacularAPIKey:     os.Getenv("SPOONACULAR_API_KEY"),
		TheMealDBAPIKey:       stringEnv("THEMEALDB_API_KEY", "1"),
		FoodSafetyKoreaAPIKey: os.Getenv("FOODSAFETYKOREA_API_KEY"),
		MafraAPIKey:           os.Getenv("MAFRA_API_KEY"),
		TranslationProvider:   strings.ToLower(stringEnv("TRANSLATION_PROVIDER", "deepl")),
		DeepLAPIKey:           os.Getenv("DEEPL_API_KEY"),
		DeepLAPIURL:           stringEnv("DEEPL_API_URL", "https://api-free.deepl.com/v2/translate"),
		LLMProvider:           strings.ToLower(stringEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GroqAPIKey:            os.Getenv("GROQ_API_KEY"),
		TelegramBotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramReportChatID:  reportChatID,
	}, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func listEnv(key, def string) []string {
	var out []string
	for _, part := range strings.Split(stringEnv(key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
