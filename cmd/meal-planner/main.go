package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"meal-planner/internal/cache"
	"meal-planner/internal/config"
	"meal-planner/internal/database"
	"meal-planner/internal/external"
	"meal-planner/internal/llm"
	"meal-planner/internal/mealtype"
	"meal-planner/internal/metrics"
	"meal-planner/internal/notify"
	"meal-planner/internal/translate"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load .env: %v", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "migrate" {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		return
	}

	switch cmd {
	case "prefetch", "translate-existing", "translate-llm", "tag-meal-types", "usage-cleanup", "usage-report":
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	db, err := database.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	metricsStore := metrics.NewStore(db.Pool)

	switch cmd {
	case "usage-cleanup":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		days := fs.Int("days", 30, "Keep records for the last N days")
		fs.Parse(args)

		affected, err := metricsStore.Cleanup(ctx, *days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old usage records.\n", affected)
		return
	case "usage-report":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		days := fs.Int("days", 7, "Report the last N days")
		fs.Parse(args)

		usage, err := metricsStore.GetDailyUsage(ctx, *days)
		if err != nil {
			log.Fatalf("Usage report failed: %v", err)
		}
		printJSON(usage)
		return
	}

	batch := newBatch(ctx, cfg, metricsStore, external.NewCachedRepository(db.Pool))

	switch cmd {
	case "prefetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		source := fs.String("source", "all", "themealdb, spoonacular or all")
		doTranslate := fs.Bool("translate", false, "Translate recipes before caching")
		dryRun := fs.Bool("dry-run", false, "Fetch without writing to the database")
		maxRecipes := fs.Int("max", 0, "Maximum new Spoonacular recipes (0 uses the default)")
		fs.Parse(args)

		stats, err := batch.Prefetch(ctx, external.PrefetchOptions{
			Source:    *source,
			Translate: *doTranslate,
			DryRun:    *dryRun,
			Max:       *maxRecipes,
		})
		printJSON(stats)
		if err != nil {
			log.Fatalf("Prefetch failed: %v", err)
		}
	case "translate-existing":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		source := fs.String("source", "all", "Source to translate, or all")
		fs.Parse(args)

		stats, err := batch.TranslateExisting(ctx, *source)
		printJSON(stats)
		if err != nil {
			log.Fatalf("Translation failed: %v", err)
		}
	case "translate-llm":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		source := fs.String("source", "all", "Source to translate, or all")
		fs.Parse(args)

		stats, err := batch.TranslateLLM(ctx, *source)
		printJSON(stats)
		if err != nil {
			log.Fatalf("LLM translation failed: %v", err)
		}
	case "tag-meal-types":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dryRun := fs.Bool("dry-run", false, "Classify without saving")
		fs.Parse(args)

		stats, err := batch.TagMealTypes(ctx, *dryRun)
		printJSON(stats)
		if err != nil {
			log.Fatalf("Meal type tagging failed: %v", err)
		}
	}
}

// newBatch wires the batch jobs. Redis is optional here; translations are
// cached in memory for the run when it is unreachable.
func newBatch(ctx context.Context, cfg *config.Config, rec metrics.Recorder, cached *external.CachedRepository) *external.Batch {
	var store cache.Store
	if r, err := cache.NewRedis(ctx, cfg.RedisURL); err != nil {
		log.Printf("Redis unavailable, using in-memory cache: %v", err)
		store = cache.NewMemory()
	} else {
		store = r
	}

	textGen, err := llm.New(ctx, cfg)
	if err != nil {
		log.Printf("LLM disabled: %v", err)
		textGen = nil
	}

	opts := external.BatchOptions{
		Store:       cached,
		MealDB:      external.NewTheMealDB(cfg.TheMealDBAPIKey),
		Spoonacular: external.NewSpoonacular(cfg.SpoonacularAPIKey),
		Translator:  translate.NewFromConfig(cfg, store, textGen, rec),
		Classifier:  mealtype.New(cfg.MealTypeFallback),
		Notifier:    notify.New(cfg.TelegramBotToken, cfg.TelegramReportChatID),
	}
	if textGen != nil {
		opts.LLMTranslator = translate.NewLLM(textGen, rec)
	}
	return external.NewBatch(opts)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("Failed to encode result: %v", err)
		return
	}
	fmt.Println(string(out))
}

func printUsage() {
	fmt.Println("Usage: meal-planner <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  migrate              Apply database migrations")
	fmt.Println("  prefetch             Cache external recipes (--source, --translate, --dry-run, --max)")
	fmt.Println("  translate-existing   Translate cached recipes still pending (--source)")
	fmt.Println("  translate-llm        Translate remaining cached recipes with the LLM (--source)")
	fmt.Println("  tag-meal-types       Classify cached recipes without meal types (--dry-run)")
	fmt.Println("  usage-cleanup        Remove old LLM usage records (--days)")
	fmt.Println("  usage-report         Print daily LLM usage (--days)")
}
