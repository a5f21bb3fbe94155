// Package httpapi exposes the meal planner over HTTP under /api/v1.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"meal-planner/internal/auth"
	"meal-planner/internal/clipper"
	"meal-planner/internal/external"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shared"
	"meal-planner/internal/shopping"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

const apiPrefix = "/api/v1"

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Session, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Session, error)
	Refresh(ctx context.Context, raw string) (*auth.TokenPair, error)
	Logout(ctx context.Context, raw string)
	Authenticate(raw string) (string, error)
	Me(ctx context.Context, userID string) (*auth.User, error)
	UpdateMe(ctx context.Context, userID string, in auth.ProfileUpdate) (*auth.User, error)
	DeleteMe(ctx context.Context, userID string) error
}

type RecipeService interface {
	Create(ctx context.Context, userID string, in recipe.CreateInput) (*recipe.Recipe, error)
	Get(ctx context.Context, userID, id string) (*recipe.Recipe, error)
	GetPublic(ctx context.Context, id string) (*recipe.Recipe, error)
	List(ctx context.Context, userID string, p recipe.SearchParams) (shared.Page[recipe.Recipe], error)
	Browse(ctx context.Context, p recipe.SearchParams) (shared.Page[recipe.Recipe], error)
	Update(ctx context.Context, userID, id string, in recipe.UpdateInput) (*recipe.Recipe, error)
	Delete(ctx context.Context, userID, id string) error
	AdjustServings(ctx context.Context, recipeID, userID string, newServings int) (*recipe.Recipe, error)

	AddFavorite(ctx context.Context, userID, recipeID string) error
	RemoveFavorite(ctx context.Context, userID, recipeID string) error
	IsFavorite(ctx context.Context, userID, recipeID string) (bool, error)
	ListFavorites(ctx context.Context, userID string, p shared.Pagination) (shared.Page[recipe.Recipe], error)

	Rate(ctx context.Context, userID, recipeID string, rating int, review *string) (*recipe.Rating, error)
	UpdateRating(ctx context.Context, userID, recipeID string, rating int, review *string) (*recipe.Rating, error)
	DeleteRating(ctx context.Context, userID, recipeID string) error
	MyRating(ctx context.Context, userID, recipeID string) (*recipe.Rating, error)
	ListRatings(ctx context.Context, recipeID string, p shared.Pagination) (shared.Page[recipe.Rating], error)
	Stats(ctx context.Context, recipeID string) (*recipe.Stats, error)
}

type PlannerService interface {
	Create(ctx context.Context, userID string, in planner.CreatePlanInput) (*planner.MealPlan, error)
	Get(ctx context.Context, userID, id string) (*planner.MealPlan, error)
	GetByWeek(ctx context.Context, userID string, day shared.Date) (*planner.MealPlan, error)
	List(ctx context.Context, userID string, p shared.Pagination) (shared.Page[planner.MealPlan], error)
	Delete(ctx context.Context, userID, id string) error
	AddSlot(ctx context.Context, userID, planID string, in planner.SlotInput) (*planner.MealSlot, error)
	UpdateSlot(ctx context.Context, userID, planID, slotID string, in planner.SlotUpdate) (*planner.MealSlot, error)
	DeleteSlot(ctx context.Context, userID, planID, slotID string) error
	AddExternalSlot(ctx context.Context, userID, planID string, in planner.ExternalSlotInput) (*planner.MealSlot, error)
	QuickPlan(ctx context.Context, userID string, in planner.QuickPlanInput) (*planner.MealPlan, error)
}

type ShoppingService interface {
	GenerateFromMealPlan(ctx context.Context, userID, mealPlanID string, name *string) (*shopping.ShoppingList, error)
	Create(ctx context.Context, userID string, in shopping.CreateListInput) (*shopping.ShoppingList, error)
	Get(ctx context.Context, userID, id string) (*shopping.ShoppingList, error)
	List(ctx context.Context, userID string, p shared.Pagination) (shared.Page[shopping.ShoppingList], error)
	Delete(ctx context.Context, userID, id string) error
	AddItem(ctx context.Context, userID, listID string, in shopping.ItemInput) (*shopping.Item, error)
	UpdateItem(ctx context.Context, userID, listID, itemID string, in shopping.ItemUpdate) (*shopping.Item, error)
	CheckItem(ctx context.Context, userID, listID, itemID string, checked bool) (*shopping.Item, error)
	DeleteItem(ctx context.Context, userID, listID, itemID string) error
}

type ExternalGateway interface {
	Search(ctx context.Context, userID string, req external.SearchRequest) (shared.Page[external.Preview], error)
	Discover(ctx context.Context, req external.DiscoverRequest) (*external.DiscoverResult, error)
	GetRecipe(ctx context.Context, source, id string) (*external.Detail, error)
	ImportRecipe(ctx context.Context, userID, source, externalID string) (*recipe.Recipe, error)
	Sources() []external.SourceInfo
	Cuisines(ctx context.Context) ([]string, error)
	Categories(ctx context.Context) ([]external.MealCategory, error)
	CacheStatus(ctx context.Context) (*external.CacheStatus, error)
}

type Extractor interface {
	Extract(ctx context.Context, userID, rawURL string) (*clipper.Result, error)
}

type PDFExporter interface {
	Export(list *shopping.ShoppingList) ([]byte, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires a Server. Database and Cache are only used by /health.
type Options struct {
	Auth      AuthService
	Recipes   RecipeService
	Planner   PlannerService
	Shopping  ShoppingService
	External  ExternalGateway
	Extractor Extractor
	PDF       PDFExporter

	Database Pinger
	Cache    Pinger

	CORSOrigins   []string
	SecureCookies bool
	RefreshTTL    time.Duration
	// Requests per second and burst allowed per client IP; zero disables.
	IPRate  float64
	IPBurst int
}

type Server struct {
	auth      AuthService
	recipes   RecipeService
	planner   PlannerService
	shopping  ShoppingService
	external  ExternalGateway
	extractor Extractor
	pdf       PDFExporter
	db        Pinger
	cache     Pinger
	proxy     *imageProxy
	opts      Options
	started   time.Time
}

func NewServer(opts Options) *Server {
	return &Server{
		auth:      opts.Auth,
		recipes:   opts.Recipes,
		planner:   opts.Planner,
		shopping:  opts.Shopping,
		external:  opts.External,
		extractor: opts.Extractor,
		pdf:       opts.PDF,
		db:        opts.Database,
		cache:     opts.Cache,
		proxy:     newImageProxy(),
		opts:      opts,
		started:   time.Now(),
	}
}

// Handler returns the router wrapped in recover, logging, security headers,
// the per-IP limiter and CORS, outermost first.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.routes()
	h = cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(h)
	if s.opts.IPRate > 0 {
		h = newIPLimiter(s.opts.IPRate, max(s.opts.IPBurst, 1)).middleware(h)
	}
	h = securityHeaders(h)
	h = loggingMiddleware(h)
	return recoverMiddleware(h)
}

func (s *Server) routes() *httprouter.Router {
	router := httprouter.New()
	router.HandleMethodNotAllowed = true
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Error: &errorBody{Code: "GENERAL_404", Message: "Route not found"}})
	})

	a := s.authenticated
	p := apiPrefix

	router.GET("/health", s.health)

	router.POST(p+"/auth/register", s.register)
	router.POST(p+"/auth/login", s.login)
	router.POST(p+"/auth/refresh", s.refresh)
	router.POST(p+"/auth/logout", a(s.logout))
	router.GET(p+"/users/me", a(s.getMe))
	router.PATCH(p+"/users/me", a(s.updateMe))
	router.DELETE(p+"/users/me", a(s.deleteMe))

	router.GET(p+"/recipes", a(s.listRecipes))
	router.POST(p+"/recipes", a(s.createRecipe))
	router.GET(p+"/recipes/:id", a(s.getRecipe))
	router.PATCH(p+"/recipes/:id", a(s.updateRecipe))
	router.DELETE(p+"/recipes/:id", a(s.deleteRecipe))
	router.POST(p+"/recipes/:id/adjust-servings", a(s.adjustServings))
	router.GET(p+"/recipes/:id/stats", a(s.recipeStats))
	router.GET(p+"/recipes/:id/ratings", a(s.listRatings))
	router.GET(p+"/recipes/:id/ratings/mine", a(s.myRating))
	router.POST(p+"/recipes/:id/ratings", a(s.createRating))
	router.PATCH(p+"/recipes/:id/ratings", a(s.updateRating))
	router.DELETE(p+"/recipes/:id/ratings", a(s.deleteRating))
	router.GET(p+"/recipes/:id/favorite", a(s.isFavorite))
	router.POST(p+"/recipes/:id/favorite", a(s.addFavorite))
	router.DELETE(p+"/recipes/:id/favorite", a(s.removeFavorite))
	router.GET(p+"/favorites", a(s.listFavorites))
	router.GET(p+"/browse/recipes", a(s.browseRecipes))
	router.GET(p+"/browse/recipes/:id", a(s.browseRecipe))
	router.POST(p+"/extract", a(s.extract))

	router.GET(p+"/external/sources", a(s.externalSources))
	router.GET(p+"/external/cuisines", a(s.externalCuisines))
	router.GET(p+"/external/categories", a(s.externalCategories))
	router.GET(p+"/external/search", a(s.externalSearch))
	router.GET(p+"/external/discover", a(s.externalDiscover))
	router.GET(p+"/external/cache-status", a(s.externalCacheStatus))
	router.GET(p+"/external/recipes/:source/:id", a(s.externalRecipe))
	router.POST(p+"/external/recipes/:source/:id/import", a(s.importExternal))

	router.GET(p+"/meal-plans", a(s.listPlans))
	router.POST(p+"/meal-plans", a(s.createPlan))
	router.GET(p+"/meal-plans/:id", a(s.getPlan))
	router.DELETE(p+"/meal-plans/:id", a(s.deletePlan))
	router.POST(p+"/meal-plans/:id/slots", a(s.addSlot))
	router.POST(p+"/meal-plans/:id/slots-external", a(s.addExternalSlot))
	router.PATCH(p+"/meal-plans/:id/slots/:slot", a(s.updateSlot))
	router.DELETE(p+"/meal-plans/:id/slots/:slot", a(s.deleteSlot))
	router.POST(p+"/meal-plans/:id/shopping-list", a(s.generateShoppingList))
	router.GET(p+"/weeks/:date/meal-plan", a(s.planForWeek))
	router.POST(p+"/quick-plans", a(s.quickPlan))

	router.GET(p+"/shopping-lists", a(s.listShoppingLists))
	router.POST(p+"/shopping-lists", a(s.createShoppingList))
	router.GET(p+"/shopping-lists/:id", a(s.getShoppingList))
	router.DELETE(p+"/shopping-lists/:id", a(s.deleteShoppingList))
	router.GET(p+"/shopping-lists/:id/pdf", a(s.shoppingListPDF))
	router.POST(p+"/shopping-lists/:id/items", a(s.addItem))
	router.PATCH(p+"/shopping-lists/:id/items/:item", a(s.updateItem))
	router.DELETE(p+"/shopping-lists/:id/items/:item", a(s.deleteItem))
	router.POST(p+"/shopping-lists/:id/items/:item/check", a(s.checkItem))

	router.GET(p+"/proxy/image", a(s.proxyImage))
	return router
}
