package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// TableInfo is the response of GET /table.
type TableInfo struct {
	Records   int    `json:"records"`
	Base      *int32 `json:"base,omitempty"`
	Sentinels int    `json:"sentinels"`
	RunId     string `json:"runId,omitempty"`
}

// Record is the response of GET /records/{index}.
type Record struct {
	Index    int   `json:"index"`
	Code     int   `json:"code"`
	Sentinel bool  `json:"sentinel"`
	Divisor  int32 `json:"divisor,omitempty"`
}

// CheckResult is the response of GET /records/{index}/check.
type CheckResult struct {
	Index    int   `json:"index"`
	Hash     int32 `json:"hash"`
	Admitted bool  `json:"admitted"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server serves lookups against one compiled table.
type Server struct {
	table *Table
}

// NewServer creates a server over t.
func NewServer(t *Table) *Server {
	return &Server{table: t}
}

// Handler mounts the server's routes on r.
func Handler(s *Server, r chi.Router) http.Handler {
	r.Get("/table", s.GetTable)
	r.Get("/records/{index}", s.GetRecord)
	r.Get("/records/{index}/check", s.CheckRecord)
	return r
}

// GetTable describes the loaded table.
func (s *Server) GetTable(w http.ResponseWriter, r *http.Request) {
	info := TableInfo{
		Records:   len(s.table.Codes),
		Sentinels: s.table.Sentinels(),
		RunId:     s.table.RunID,
	}
	if s.table.HasBase {
		base := s.table.Base
		info.Base = &base
	}
	writeJSON(w, http.StatusOK, info)
}

// GetRecord returns one record's code and decoded divisor.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	index, ok := s.bindIndex(w, r)
	if !ok {
		return
	}

	code := s.table.Codes[index]
	rec := Record{
		Index:    index,
		Code:     int(code),
		Sentinel: code == 0,
	}
	if code != 0 {
		rec.Divisor = s.table.Divisor(index)
	}
	writeJSON(w, http.StatusOK, rec)
}

// CheckRecord reports whether the hash query parameter is admitted by the record.
func (s *Server) CheckRecord(w http.ResponseWriter, r *http.Request) {
	index, ok := s.bindIndex(w, r)
	if !ok {
		return
	}

	var hash int32
	if err := runtime.BindQueryParameter("form", true, true, "hash", r.URL.Query(), &hash); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter hash: %s", err))
		return
	}

	writeJSON(w, http.StatusOK, CheckResult{
		Index:    index,
		Hash:     hash,
		Admitted: s.table.Admits(index, hash),
	})
}

func (s *Server) bindIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	var index int
	err := runtime.BindStyledParameterWithOptions("simple", "index", chi.URLParam(r, "index"), &index,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter index: %s", err))
		return 0, false
	}
	if index < 0 || index >= len(s.table.Codes) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Record %d not found", index))
		return 0, false
	}
	return index, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Error{Code: status, Message: message})
}
