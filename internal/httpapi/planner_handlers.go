package httpapi

import (
	"net/http"

	"meal-planner/internal/apperr"
	"meal-planner/internal/planner"
	"meal-planner/internal/shared"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	pg, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.planner.List(r.Context(), userID(r), pg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, page)
}

func (s *Server) createPlan(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in planner.CreatePlanInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.planner.Create(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, plan)
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	plan, err := s.planner.Get(r.Context(), userID(r), ps.ByName("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, plan)
}

// planForWeek answers with null data when the week has no plan yet.
func (s *Server) planForWeek(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	day, err := shared.ParseDate(ps.ByName("date"))
	if err != nil {
		writeError(w, r, apperr.Validation("date must be YYYY-MM-DD"))
		return
	}
	plan, err := s.planner.GetByWeek(r.Context(), userID(r), day)
	if apperr.Is(err, "MEALPLAN_001") {
		writeData(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, plan)
}

func (s *Server) deletePlan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.planner.Delete(r.Context(), userID(r), ps.ByName("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) addSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in planner.SlotInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	slot, err := s.planner.AddSlot(r.Context(), userID(r), ps.ByName("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, slot)
}

func (s *Server) addExternalSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in planner.ExternalSlotInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	slot, err := s.planner.AddExternalSlot(r.Context(), userID(r), ps.ByName("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, slot)
}

func (s *Server) updateSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in planner.SlotUpdate
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	slot, err := s.planner.UpdateSlot(r.Context(), userID(r), ps.ByName("id"), ps.ByName("slot"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, slot)
}

func (s *Server) deleteSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.planner.DeleteSlot(r.Context(), userID(r), ps.ByName("id"), ps.ByName("slot")); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) quickPlan(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in planner.QuickPlanInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.planner.QuickPlan(r.Context(), userID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, plan)
}

func (s *Server) generateShoppingList(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body struct {
		Name *string `json:"name"`
	}
	if err := decode(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.shopping.GenerateFromMealPlan(r.Context(), userID(r), ps.ByName("id"), body.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, list)
}
