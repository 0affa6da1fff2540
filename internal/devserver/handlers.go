package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/iammorganparry/datachat/internal/api"
)

// MaxUploadBytes caps the multipart body of /upload
const MaxUploadBytes = 64 << 20

// Handler implements the analysis service endpoints on top of a Store
type Handler struct {
	store   *Store
	planner Planner
	logger  *slog.Logger
}

// NewHandler creates a handler. A nil planner means KeywordPlanner.
func NewHandler(store *Store, planner Planner, logger *slog.Logger) *Handler {
	if planner == nil {
		planner = KeywordPlanner{}
	}
	return &Handler{store: store, planner: planner, logger: logger}
}

type validationIssue struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Root handles GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "datachat dev analysis service", "status": "running"})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Upload handles POST /upload
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []validationIssue{{Loc: []string{"body", "file"}, Msg: "field required", Type: "value_error.missing"}},
		})
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".xlsx" && ext != ".xls" {
		writeError(w, http.StatusBadRequest, "Please upload an Excel file (.xlsx or .xls)")
		return
	}

	sheets, err := ParseWorkbook(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error processing Excel file: "+err.Error())
		return
	}

	tableID := "table_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	if err := h.store.SaveDataset(r.Context(), tableID, filename, sheets); err != nil {
		h.logger.Error("store dataset failed", "table_id", tableID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error storing data: "+err.Error())
		return
	}

	resp := api.UploadResponse{
		TableID:    tableID,
		Filename:   filename,
		Sheets:     make(map[string]api.SheetMeta, len(sheets)),
		UploadTime: time.Now().Format("2006-01-02T15:04:05.000000"),
	}
	for _, s := range sheets {
		resp.Sheets[s.Name] = api.SheetMeta{
			Shape:   []int{len(s.Rows), len(s.Columns)},
			Columns: s.Columns,
			DTypes:  s.DTypes,
		}
	}

	h.logger.Info("dataset ingested", "table_id", tableID, "file", filename, "sheets", len(sheets))
	writeJSON(w, http.StatusOK, resp)
}

// Query handles POST /query
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req api.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TableID == "" || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "table_id and question are required")
		return
	}

	sheets, err := h.store.Sheets(r.Context(), req.TableID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "Table not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	plan, err := h.planner.Plan(r.Context(), req.Question, sheets)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rows, err := h.store.Query(r.Context(), plan.SQL)
	if err != nil {
		h.logger.Warn("query execution failed", "table_id", req.TableID, "sql", plan.SQL, "error", err)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":              false,
			"error":                "SQL execution error: " + err.Error(),
			"fallback_explanation": plan.Explanation,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"data":        rows,
		"chart":       visualize(rows, plan.Visualization),
		"explanation": plan.Explanation,
		"insights":    plan.Insights,
		"row_count":   len(rows),
	})
}

// TableInfo handles GET /tables/{tableID}/info
func (h *Handler) TableInfo(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableID")
	sheets, err := h.store.Sheets(r.Context(), tableID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Table not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table_id": tableID, "tables": sheets})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a {"detail": ...} body the way the analysis service does
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
