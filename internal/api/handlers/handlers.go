package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/engine"
	"github.com/dvloznov/finance-assistant/internal/jobs"
)

const dateLayout = "2006-01-02"

// QueryHandler serves the conversational query endpoint.
type QueryHandler struct {
	engine *engine.Engine
	log    zerolog.Logger
}

func NewQueryHandler(eng *engine.Engine, log zerolog.Logger) *QueryHandler {
	return &QueryHandler{engine: eng, log: log}
}

// Query handles POST /api/query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"user_id"`
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.Question == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and question are required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = req.UserID
	}

	result, err := h.engine.Query(r.Context(), req.UserID, req.SessionID, req.Question)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Query failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to answer query")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// transactionPayload is the wire shape of a ledger entry. Amounts travel as
// decimal strings; minor units stay internal.
type transactionPayload struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Category    string `json:"category"`
	Description string `json:"description"`
	OccurredAt  string `json:"occurred_at"`
	Source      string `json:"source"`
}

func toPayload(t *domain.Transaction) transactionPayload {
	return transactionPayload{
		ID:          t.ID,
		UserID:      t.UserID,
		Amount:      domain.FormatAmount(t.AmountMinor),
		Currency:    t.Currency,
		Category:    t.Category,
		Description: t.Description,
		OccurredAt:  t.OccurredAt.Format(dateLayout),
		Source:      string(t.Source),
	}
}

// TransactionsHandler serves the structured ledger endpoints.
type TransactionsHandler struct {
	engine *engine.Engine
	store  engine.Store
	log    zerolog.Logger
}

func NewTransactionsHandler(eng *engine.Engine, store engine.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{engine: eng, store: store, log: log}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	userID := query.Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var filter domain.Filter
	filter.Category = query.Get("category")

	if s := query.Get("date_from"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date_from format")
			return
		}
		filter.DateFrom = t
	}
	if s := query.Get("date_to"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date_to format")
			return
		}
		// date_to is inclusive on the wire; the filter's upper bound is not.
		filter.DateTo = t.AddDate(0, 0, 1)
	}

	limit := 0
	if s := query.Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	transactions, err := h.store.FindTransactions(r.Context(), userID, filter, limit)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	payload := make([]transactionPayload, 0, len(transactions))
	for _, t := range transactions {
		payload = append(payload, toPayload(t))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": payload,
		"count":        len(payload),
	})
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		Amount      string `json:"amount"`
		Type        string `json:"type"` // expense (default) or income
		Currency    string `json:"currency"`
		Category    string `json:"category"`
		Description string `json:"description"`
		OccurredAt  string `json:"occurred_at"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.Amount == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and amount are required")
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	if amount < 0 {
		amount = -amount
	}

	// The wire amount is an unsigned magnitude; the ledger stores spending
	// negative and income positive, same as the capture path.
	switch req.Type {
	case "", "expense":
		amount = -amount
	case "income":
	default:
		middleware.WriteError(w, http.StatusBadRequest, "type must be expense or income")
		return
	}

	occurredAt := time.Now()
	if req.OccurredAt != "" {
		occurredAt, err = time.Parse(dateLayout, req.OccurredAt)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid occurred_at format")
			return
		}
	}

	category := req.Category
	if canon, ok := domain.CanonicalCategory(category); ok {
		category = canon
	} else if category == "" {
		category = "Other"
	}

	t := &domain.Transaction{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		AmountMinor: amount,
		Currency:    req.Currency,
		Category:    category,
		Description: req.Description,
		OccurredAt:  occurredAt,
		Source:      domain.SourceManual,
	}

	if err := h.engine.AddTransaction(r.Context(), t); err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to create transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to create transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, toPayload(t))
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, transactionID string) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.engine.DeleteTransaction(r.Context(), userID, transactionID); err != nil {
		h.log.Error().Err(err).Str("transaction_id", transactionID).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"transaction_id": transactionID,
		"status":         "deleted",
	})
}

// DocumentsHandler serves document ingestion endpoints.
type DocumentsHandler struct {
	engine    *engine.Engine
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewDocumentsHandler(eng *engine.Engine, publisher jobs.Publisher, log zerolog.Logger) *DocumentsHandler {
	return &DocumentsHandler{engine: eng, publisher: publisher, log: log}
}

// IngestDocument handles POST /api/documents/ingest. The document is fetched,
// extracted and indexed before the response is written.
func (h *DocumentsHandler) IngestDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		SourceID string `json:"source_id"`
		GCSURI   string `json:"gcs_uri"`
		MimeType string `json:"mime_type"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.GCSURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and gcs_uri are required")
		return
	}
	if req.SourceID == "" {
		req.SourceID = uuid.New().String()
	}

	if err := h.engine.IngestDocument(r.Context(), req.UserID, req.SourceID, req.GCSURI, req.MimeType); err != nil {
		h.log.Error().Err(err).Str("source_id", req.SourceID).Msg("Failed to ingest document")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to ingest document")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"source_id": req.SourceID,
		"status":    "indexed",
	})
}

// EnqueueIndex handles POST /api/index. The job runs asynchronously; poll
// GET /api/jobs/{id} for progress.
func (h *DocumentsHandler) EnqueueIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		SourceID string `json:"source_id"`
		Kind     string `json:"kind"`
		GCSURI   string `json:"gcs_uri"`
		MimeType string `json:"mime_type"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.SourceID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and source_id are required")
		return
	}

	kind := jobs.SourceKind(req.Kind)
	switch kind {
	case jobs.SourceKindTransaction:
	case jobs.SourceKindDocument:
		if req.GCSURI == "" {
			middleware.WriteError(w, http.StatusBadRequest, "gcs_uri is required for document sources")
			return
		}
	default:
		middleware.WriteError(w, http.StatusBadRequest, "kind must be transaction or document")
		return
	}

	job := &jobs.IndexSourceJob{
		UserID:   req.UserID,
		SourceID: req.SourceID,
		Kind:     kind,
		GCSURI:   req.GCSURI,
		MimeType: req.MimeType,
	}

	if err := h.publisher.PublishIndexSource(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("source_id", req.SourceID).Msg("Failed to enqueue indexing job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue indexing job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source_id", req.SourceID).Msg("Indexing job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.JobID,
		"source_id": req.SourceID,
		"status":    string(job.Status),
	})
}

// JobsHandler serves job status lookups.
type JobsHandler struct {
	store jobs.Store
	log   zerolog.Logger
}

func NewJobsHandler(store jobs.Store, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}
