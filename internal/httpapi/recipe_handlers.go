package httpapi

import (
	"net/http"
	"strings"

	"meal-planner/internal/apperr"
	"meal-planner/internal/recipe"

	"github.com/julienschmidt/httprouter"
)

func searchParams(r *http.Request) (recipe.SearchParams, error) {
	pg, err := pagination(r)
	if err != nil {
		return recipe.SearchParams{}, err
	}
	prep, err := optionalIntQuery(r, "max_prep_time")
	if err != nil {
		return recipe.SearchParams{}, err
	}
	cook, err := optionalIntQuery(r, "max_cook_time")
	if err != nil {
		return recipe.SearchParams{}, err
	}
	q := r.URL.Query()
	query := q.Get("query")
	if query == "" {
		query = q.Get("q")
	}
	return recipe.SearchParams{
		Query:       strings.TrimSpace(query),
		Categories:  listQuery(r, "categories"),
		Tags:        listQuery(r, "tags"),
		Difficulty:  q.Get("difficulty"),
		MaxPrepTime: prep,
		MaxCookTime: cook,
		Page:        pg.Page,
		Limit:       pg.Limit,
	}, nil
}

func (s *Server) listRecipes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, err := searchParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.recipes.List(r.Context(), userID(r), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) browseRecipes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	p, err := searchParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.recipes.Browse(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) browseRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rec, err := s.recipes.GetPublic(r.Context(), ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) createRecipe(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in recipe.CreateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.recipes.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}

func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rec, err := s.recipes.Get(r.Context(), userID(r), ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) updateRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in recipe.UpdateInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.recipes.Update(r.Context(), userID(r), ps.ByName("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) deleteRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.recipes.Delete(r.Context(), userID(r), ps.ByName("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

// adjustServings takes the target from ?servings= or a {"servings": n} body.
func (s *Server) adjustServings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	servings, err := intQuery(r, "servings", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if servings == 0 {
		var body struct {
			Servings int `json:"servings"`
		}
		if err := decode(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		servings = body.Servings
	}
	if servings == 0 {
		writeError(w, r, apperr.Validation("servings is required"))
		return
	}
	rec, err := s.recipes.AdjustServings(r.Context(), ps.ByName("id"), userID(r), servings)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

func (s *Server) recipeStats(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	st, err := s.recipes.Stats(r.Context(), ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, st)
}

type ratingBody struct {
	Rating int     `json:"rating"`
	Review *string `json:"review"`
}

func (s *Server) listRatings(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pg, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.recipes.ListRatings(r.Context(), ps.ByName("id"), pg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) myRating(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rating, err := s.recipes.MyRating(r.Context(), userID(r), ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rating)
}

func (s *Server) createRating(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body ratingBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	rating, err := s.recipes.Rate(r.Context(), userID(r), ps.ByName("id"), body.Rating, body.Review)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rating)
}

func (s *Server) updateRating(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body ratingBody
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	rating, err := s.recipes.UpdateRating(r.Context(), userID(r), ps.ByName("id"), body.Rating, body.Review)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, rating)
}

func (s *Server) deleteRating(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.recipes.DeleteRating(r.Context(), userID(r), ps.ByName("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) isFavorite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ok, err := s.recipes.IsFavorite(r.Context(), userID(r), ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, ok)
}

func (s *Server) addFavorite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.recipes.AddFavorite(r.Context(), userID(r), ps.ByName("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, true)
}

func (s *Server) removeFavorite(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.recipes.RemoveFavorite(r.Context(), userID(r), ps.ByName("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, false)
}

func (s *Server) listFavorites(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pg, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.recipes.ListFavorites(r.Context(), userID(r), pg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		URL string `json:"url"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		writeError(w, r, apperr.Validation("url is required"))
		return
	}
	res, err := s.extractor.Extract(r.Context(), userID(r), body.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}
