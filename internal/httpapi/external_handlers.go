package httpapi

import (
	"net/http"
	"strings"

	"meal-planner/internal/apperr"
	"meal-planner/internal/external"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) externalSources(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeData(w, http.StatusOK, s.external.Sources())
}

func (s *Server) externalCuisines(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	out, err := s.external.Cuisines(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) externalCategories(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	out, err := s.external.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) externalSearch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pg, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if pg.Limit > 50 {
		writeError(w, r, apperr.Validation("limit must be between 1 and 50"))
		return
	}
	ready, err := optionalIntQuery(r, "max_ready_time")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ready != nil && (*ready < 1 || *ready > 300) {
		writeError(w, r, apperr.Validation("max_ready_time must be between 1 and 300"))
		return
	}
	q := r.URL.Query()
	page, err := s.external.Search(r.Context(), userID(r), external.SearchRequest{
		Query:        strings.TrimSpace(q.Get("query")),
		Source:       q.Get("source"),
		Cuisine:      q.Get("cuisine"),
		MaxReadyTime: ready,
		Pagination:   pg,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) externalDiscover(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	number, err := intQuery(r, "number", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	res, err := s.external.Discover(r.Context(), external.DiscoverRequest{
		Category: q.Get("category"),
		Cuisine:  q.Get("cuisine"),
		MealType: q.Get("meal_type"),
		Number:   number,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) externalCacheStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	st, err := s.external.CacheStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, st)
}

func (s *Server) externalRecipe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	d, err := s.external.GetRecipe(r.Context(), ps.ByName("source"), ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

func (s *Server) importExternal(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rec, err := s.external.ImportRecipe(r.Context(), userID(r), ps.ByName("source"), ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, rec)
}
