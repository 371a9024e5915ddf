/*
handlers.go - HTTP API handlers for the KPI tracking system

PURPOSE:
  Exposes the progress engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Identity:
    POST   /api/login                    Look up a user by email

  Progress:
    POST   /api/progress                 Record a KPI completion
    GET    /api/progress                 List entries (filterable)
    DELETE /api/progress/{id}            Administrative deletion

  Summaries:
    GET    /api/summary/week             Per-user week sums + previous week
    GET    /api/summary/month            Per-user and department month totals
    GET    /api/leaderboard              Sorted per-user sums

  Settings:
    GET    /api/settings/repeat-policy   Read the repeat policy
    PUT    /api/settings/repeat-policy   Update the repeat policy

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Unknown or inactive login identity
  - 404: Resource not found
  - 409: Repeat-policy conflict ("already recorded for this period")
  - 500: Storage errors
  The 409/404/500 distinction is preserved deliberately so clients can tell
  a policy conflict apart from a missing resource or a storage failure.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tally/kpitrack/kpi"
	"github.com/tally/kpitrack/metrics"
	"github.com/tally/kpitrack/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *kpi.Engine

	// DefaultPolicy applies when the settings store has no repeat_policy row.
	DefaultPolicy kpi.RepeatPolicy
}

// NewHandler creates a new handler over the given store.
func NewHandler(store *sqlite.Store, defaultPolicy kpi.RepeatPolicy) *Handler {
	return &Handler{
		Store:         store,
		Engine:        kpi.NewEngine(store),
		DefaultPolicy: defaultPolicy,
	}
}

// repeatPolicy reads the active policy from settings, falling back to the
// configured default. Read once per request and passed explicitly into the
// engine; changing it never revalidates existing entries.
func (h *Handler) repeatPolicy(r *http.Request) (kpi.RepeatPolicy, error) {
	value, ok, err := h.Store.GetSetting(r.Context(), kpi.SettingRepeatPolicy)
	if err != nil {
		return "", err
	}
	if !ok {
		return h.DefaultPolicy, nil
	}
	return kpi.ParseRepeatPolicy(value)
}

// =============================================================================
// IDENTITY
// =============================================================================

// Login looks up a user by email, case-insensitively. This is an identity
// lookup for the dashboard, not an authentication scheme.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required", nil)
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up user", err)
		return
	}
	if user == nil || !user.Active {
		writeError(w, http.StatusUnauthorized, "Unknown or inactive user", nil)
		return
	}

	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// =============================================================================
// PROGRESS
// =============================================================================

// RecordProgress records a KPI completion for a user. The score is the
// KPI's weight at recording time. Returns 409 when the repeat policy
// already credits this (user, kpi) in the bucket.
func (h *Handler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	var req RecordProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date := kpi.Today()
	if req.Date != "" {
		var err error
		date, err = kpi.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	ctx := r.Context()

	user, err := h.Store.GetUser(ctx, kpi.UserID(req.UserID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up user", err)
		return
	}
	if user == nil || !user.Active {
		writeError(w, http.StatusNotFound, "User not found", kpi.ErrUserNotFound)
		return
	}

	indicator, err := h.Store.GetKpi(ctx, kpi.KpiID(req.KpiID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up KPI", err)
		return
	}
	if indicator == nil || !indicator.Active {
		writeError(w, http.StatusNotFound, "KPI not found", kpi.ErrKpiNotFound)
		return
	}

	policy, err := h.repeatPolicy(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read repeat policy", err)
		return
	}

	entry := kpi.ProgressEntry{
		ID:        kpi.EntryID(uuid.NewString()),
		UserID:    user.ID,
		KpiID:     indicator.ID,
		Date:      date,
		Score:     indicator.Weight,
		Completed: true,
	}

	if err := h.Engine.Record(ctx, entry, policy); err != nil {
		if kpi.IsConflict(err) {
			metrics.RecordingsTotal.WithLabelValues("conflict").Inc()
			writeError(w, http.StatusConflict, "Already recorded for this period", err)
			return
		}
		metrics.RecordingsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "Failed to record progress", err)
		return
	}

	metrics.RecordingsTotal.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// ListProgress returns entries filtered by user_id, kpi_id, from, to.
func (h *Handler) ListProgress(w http.ResponseWriter, r *http.Request) {
	var filter kpi.EntryFilter

	if v := r.URL.Query().Get("user_id"); v != "" {
		id := kpi.UserID(v)
		filter.UserID = &id
	}
	if v := r.URL.Query().Get("kpi_id"); v != "" {
		id := kpi.KpiID(v)
		filter.KpiID = &id
	}

	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from != "" || to != "" {
		if from == "" || to == "" {
			writeError(w, http.StatusBadRequest, "from and to must be supplied together", nil)
			return
		}
		start, err := kpi.ParseDate(from)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		end, err := kpi.ParseDate(to)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return
		}
		if end.Before(start) {
			writeError(w, http.StatusBadRequest, "to must not precede from", nil)
			return
		}
		filter.Range = &kpi.DateRange{Start: start, End: end}
	}

	entries, err := h.Store.QueryEntries(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list progress", err)
		return
	}

	dtos := make([]ProgressEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteProgress removes an entry. Administrative use only.
func (h *Handler) DeleteProgress(w http.ResponseWriter, r *http.Request) {
	id := kpi.EntryID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteEntry(r.Context(), id); err != nil {
		if kpi.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Progress entry not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete progress entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

// =============================================================================
// SUMMARIES
// =============================================================================

// WeekSummary returns per-user sums and targets for the ISO week containing
// the date param (default today), plus the previous full week.
func (h *Handler) WeekSummary(w http.ResponseWriter, r *http.Request) {
	ref := kpi.Today()
	if v := r.URL.Query().Get("date"); v != "" {
		var err error
		ref, err = kpi.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	ctx := r.Context()
	week, err := h.Engine.WeekSummary(ctx, ref)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize week", err)
		return
	}
	previous, err := h.Engine.PreviousWeekSummary(ctx, ref)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to summarize previous week", err)
		return
	}

	writeJSON(w, http.StatusOK, WeekSummaryDTO{
		Week:         toSummaryDTO(week),
		PreviousWeek: toSummaryDTO(previous),
	})
}

// MonthSummary returns per-user and department totals for a calendar month.
// The department target scales by the distinct ISO weeks the month touches.
func (h *Handler) MonthSummary(w http.ResponseWriter, r *http.Request) {
	now := kpi.Today()
	year, month := now.Year(), now.Month()

	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "Invalid month (1-12)", err)
			return
		}
		month = time.Month(m)
	}

	summary, err := h.Engine.MonthSummary(r.Context(), year, month)
	if err != nil {
		if kpi.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid month", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to summarize month", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// Leaderboard returns per-user totals for the week or month containing the
// date param, sorted by total descending.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	ref := kpi.Today()
	if v := r.URL.Query().Get("date"); v != "" {
		var err error
		ref, err = kpi.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	}

	var (
		summary *kpi.Summary
		err     error
	)
	switch period := r.URL.Query().Get("period"); period {
	case "", "week":
		summary, err = h.Engine.WeekSummary(r.Context(), ref)
	case "month":
		summary, err = h.Engine.MonthSummary(r.Context(), ref.Year(), ref.Month())
	default:
		writeError(w, http.StatusBadRequest, "period must be week or month", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build leaderboard", err)
		return
	}

	rows := make([]UserTotalDTO, 0, len(summary.PerUser))
	for _, row := range summary.PerUser {
		rows = append(rows, UserTotalDTO{
			UserID:  string(row.User.ID),
			Name:    row.User.Name,
			Total:   row.Total.String(),
			Percent: row.Percent,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a := kpi.MustParseDecimal(rows[i].Total)
		b := kpi.MustParseDecimal(rows[j].Total)
		return a.GreaterThan(b)
	})

	writeJSON(w, http.StatusOK, rows)
}

// =============================================================================
// SETTINGS
// =============================================================================

// GetRepeatPolicy returns the active repeat policy.
func (h *Handler) GetRepeatPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.repeatPolicy(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read repeat policy", err)
		return
	}
	writeJSON(w, http.StatusOK, SettingDTO{Key: kpi.SettingRepeatPolicy, Value: string(policy)})
}

// SetRepeatPolicy updates the repeat policy. Compliance is checked only at
// write time: existing entries are never revalidated against a new policy.
func (h *Handler) SetRepeatPolicy(w http.ResponseWriter, r *http.Request) {
	var req SettingDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	policy, err := kpi.ParseRepeatPolicy(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown repeat policy (unlimited, per_day, per_week)", err)
		return
	}

	if err := h.Store.SetSetting(r.Context(), kpi.SettingRepeatPolicy, string(policy)); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update repeat policy", err)
		return
	}
	writeJSON(w, http.StatusOK, SettingDTO{Key: kpi.SettingRepeatPolicy, Value: string(policy)})
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
