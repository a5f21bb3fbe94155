package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meal-planner/internal/auth"
	"meal-planner/internal/cache"
	"meal-planner/internal/clipper"
	"meal-planner/internal/config"
	"meal-planner/internal/database"
	"meal-planner/internal/external"
	"meal-planner/internal/httpapi"
	"meal-planner/internal/llm"
	"meal-planner/internal/mealtype"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shopping"
	"meal-planner/internal/translate"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine in production where the environment is set directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	// 1. Load Configuration
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. Database (runs migrations)
	db, err := database.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// 3. Cache: Redis when reachable, in-process otherwise
	var store cache.Store
	var redisPinger httpapi.Pinger
	redisClient, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("Redis unavailable, using in-memory cache: %v", err)
		store = cache.NewMemory()
	} else {
		defer redisClient.Close()
		store = redisClient
		redisPinger = redisClient
	}

	// 4. LLM (optional)
	textGen, err := llm.New(ctx, cfg)
	if err != nil {
		log.Printf("LLM disabled: %v", err)
		textGen = nil
	} else if c, ok := textGen.(llm.Closer); ok {
		defer c.Close()
	}

	metricsStore := metrics.NewStore(db.Pool)
	translator := translate.NewFromConfig(cfg, store, textGen, metricsStore)
	classifier := mealtype.New(cfg.MealTypeFallback)

	limiter := cache.NewLimiter(store, map[string]int{
		cache.URLExtraction:  cfg.URLExtractionDaily,
		cache.ExternalSearch: cfg.ExternalSearchDaily,
	}, cfg.CountFailedAttempts)

	// 5. Services
	recipeService := recipe.NewService(recipe.NewRepository(db.Pool))

	seed, err := external.NewKoreanSeed(classifier)
	if err != nil {
		log.Fatalf("Failed to load seed recipes: %v", err)
	}
	mealDB := external.NewTheMealDB(cfg.TheMealDBAPIKey)
	gateway := external.NewGateway(external.GatewayOptions{
		Providers: []external.Provider{
			mealDB,
			external.NewSpoonacular(cfg.SpoonacularAPIKey),
			external.NewFoodSafetyKorea(cfg.FoodSafetyKoreaAPIKey),
			external.NewMafra(cfg.MafraAPIKey),
		},
		Seed:       seed,
		MealDB:     mealDB,
		Cached:     external.NewCachedRepository(db.Pool),
		Store:      store,
		Limiter:    limiter,
		Translator: translator,
		Recipes:    recipeService,
		Classifier: classifier,
	})

	plannerService := planner.NewService(planner.NewPlanRepository(db.Pool), recipeService, gateway)
	shoppingService := shopping.NewService(shopping.NewRepository(db.Pool), plannerService)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := auth.NewService(
		auth.NewRepository(db.Pool),
		issuer,
		store,
		cache.NewLoginGuard(store, cfg.LoginAttempts, cfg.LoginWindow),
		cfg.BcryptCost,
	)

	server := httpapi.NewServer(httpapi.Options{
		Auth:          authService,
		Recipes:       recipeService,
		Planner:       plannerService,
		Shopping:      shoppingService,
		External:      gateway,
		Extractor:     clipper.NewClipper(textGen, store, limiter, metricsStore),
		PDF:           shopping.NewPDFExporter(cfg.PublicBaseURL, cfg.PDFFontPath),
		Database:      db,
		Cache:         redisPinger,
		CORSOrigins:   cfg.CORSOrigins,
		SecureCookies: cfg.CookieSecure,
		RefreshTTL:    cfg.RefreshTokenTTL,
		IPRate:        cfg.IPRate,
		IPBurst:       cfg.IPBurst,
	})

	// 6. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Meal planner API listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
