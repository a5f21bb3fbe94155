package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"meal-planner/internal/apperr"
	"meal-planner/internal/shared"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type pageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// envelope is the shape of every JSON response.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data"`
	Error   *errorBody `json:"error,omitempty"`
	Meta    *pageMeta  `json:"meta,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writePage puts the items in data and the paging numbers in meta.
func writePage[T any](w http.ResponseWriter, p shared.Page[T]) {
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    p.Items,
		Meta:    &pageMeta{Total: p.Total, Page: p.Page, Limit: p.Limit, TotalPages: p.TotalPages},
	})
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps domain errors to their status. Anything else is logged and
// reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
		e = apperr.Internal()
	}
	writeJSON(w, e.Status, envelope{Success: false, Error: &errorBody{Code: e.Code, Message: e.Message}})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return apperr.Validation("Invalid JSON body: " + err.Error())
	}
	return nil
}

func pagination(r *http.Request) (shared.Pagination, error) {
	page, err := intQuery(r, "page", 1)
	if err != nil {
		return shared.Pagination{}, err
	}
	limit, err := intQuery(r, "limit", 20)
	if err != nil {
		return shared.Pagination{}, err
	}
	if page < 1 || limit < 1 || limit > 100 {
		return shared.Pagination{}, apperr.Validation("page must be >= 1 and limit between 1 and 100")
	}
	return shared.Pagination{Page: page, Limit: limit}, nil
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validation(key + " must be an integer")
	}
	return n, nil
}

func optionalIntQuery(r *http.Request, key string) (*int, error) {
	if r.URL.Query().Get(key) == "" {
		return nil, nil
	}
	n, err := intQuery(r, key, 0)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, apperr.Validation(key + " must not be negative")
	}
	return &n, nil
}

// listQuery accepts both repeated keys and comma-separated values.
func listQuery(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
