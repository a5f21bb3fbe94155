package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"meal-planner/internal/apperr"
	"meal-planner/internal/shopping"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) listShoppingLists(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pg, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.shopping.List(r.Context(), userID(r), pg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) createShoppingList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in shopping.CreateListInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.shopping.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, list)
}

func (s *Server) getShoppingList(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	list, err := s.shopping.Get(r.Context(), userID(r), ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (s *Server) deleteShoppingList(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.shopping.Delete(r.Context(), userID(r), ps.ByName("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) shoppingListPDF(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	list, err := s.shopping.Get(r.Context(), userID(r), ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.pdf.Export(list)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="shopping-list-%s.pdf"`, list.ID))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in shopping.ItemInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.shopping.AddItem(r.Context(), userID(r), ps.ByName("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, item)
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in shopping.ItemUpdate
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.shopping.UpdateItem(r.Context(), userID(r), ps.ByName("id"), ps.ByName("item"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, item)
}

// checkItem reads ?is_checked=, defaulting to true.
func (s *Server) checkItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	checked := true
	if v := r.URL.Query().Get("is_checked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, apperr.Validation("is_checked must be a boolean"))
			return
		}
		checked = b
	}
	item, err := s.shopping.CheckItem(r.Context(), userID(r), ps.ByName("id"), ps.ByName("item"), checked)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, item)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.shopping.DeleteItem(r.Context(), userID(r), ps.ByName("id"), ps.ByName("item")); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}
