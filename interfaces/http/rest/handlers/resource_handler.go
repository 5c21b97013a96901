package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"internship-backend/application/ports"
	"internship-backend/infrastructure/persistence/connection"
	apperrors "internship-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes = 10 << 20

	defaultLimit    = 100
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// listQuery holds the paging parameters of a list request
type listQuery struct {
	Limit  int `validate:"min=1,max=500"`
	Offset int `validate:"min=0"`
}

// Response is the success envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Count   *int        `json:"count,omitempty"`
}

// ResourceHandler serves CRUD for one document collection. The documents
// are schemaless; the handler only owns the id and timestamp fields.
type ResourceHandler struct {
	collection string
	validate   *validator.Validate
	errors     *apperrors.ErrorHandler
	logger     *zap.Logger
	now        func() time.Time
}

// NewResourceHandler creates a handler for collection
func NewResourceHandler(collection string, validate *validator.Validate, errs *apperrors.ErrorHandler, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{
		collection: collection,
		validate:   validate,
		errors:     errs,
		logger:     logger.With(zap.String("collection", collection)),
		now:        time.Now,
	}
}

// Routes returns the collection's routes, to be mounted under a prefix.
func (h *ResourceHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// List handles GET /
func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	opts, err := h.listOptions(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	docs, err := store.List(r.Context(), h.collection, opts)
	if err != nil {
		h.errors.Handle(w, r, h.storeError("list", err))
		return
	}

	count := len(docs)
	h.respond(w, http.StatusOK, Response{Success: true, Data: docs, Count: &count})
}

// Get handles GET /{id}
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	doc, err := store.Get(r.Context(), h.collection, chi.URLParam(r, "id"))
	if err != nil {
		h.errors.Handle(w, r, h.storeError("get", err))
		return
	}
	h.respond(w, http.StatusOK, Response{Success: true, Data: doc})
}

// Create handles POST /
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	doc, err := decodeDocument(w, r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	now := timestamp(h.now())
	doc["id"] = uuid.New().String()
	doc["createdAt"] = now
	doc["updatedAt"] = now

	created, err := store.Insert(r.Context(), h.collection, doc)
	if err != nil {
		h.errors.Handle(w, r, h.storeError("insert", err))
		return
	}

	h.logger.Debug("Document created", zap.String("id", created.ID()))
	h.respond(w, http.StatusCreated, Response{Success: true, Data: created})
}

// Update handles PUT and PATCH /{id}. Both merge the body into the
// stored document.
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	patch, err := decodeDocument(w, r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	delete(patch, "id")
	delete(patch, "createdAt")
	patch["updatedAt"] = timestamp(h.now())

	updated, err := store.Update(r.Context(), h.collection, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.errors.Handle(w, r, h.storeError("update", err))
		return
	}
	h.respond(w, http.StatusOK, Response{Success: true, Data: updated})
}

// Delete handles DELETE /{id}
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := store.Delete(r.Context(), h.collection, id); err != nil {
		h.errors.Handle(w, r, h.storeError("delete", err))
		return
	}
	h.respond(w, http.StatusOK, Response{Success: true, Data: map[string]string{"id": id}})
}

// store returns the documents of the connection the gate placed on the
// request context.
func (h *ResourceHandler) store(r *http.Request) (ports.DocumentStore, error) {
	conn, ok := connection.FromContext(r.Context())
	if !ok {
		return nil, apperrors.NewUnavailableError("Database connection is not available")
	}
	return conn.Documents(), nil
}

func (h *ResourceHandler) listOptions(r *http.Request) (ports.ListOptions, error) {
	query := r.URL.Query()
	q := listQuery{Limit: defaultLimit}

	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return ports.ListOptions{}, apperrors.NewValidationError("limit must be an integer").WithCause(err)
		}
		q.Limit = n
	}
	if raw := query.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return ports.ListOptions{}, apperrors.NewValidationError("offset must be an integer").WithCause(err)
		}
		q.Offset = n
	}
	if err := h.validate.Struct(q); err != nil {
		return ports.ListOptions{}, apperrors.NewValidationError("invalid paging parameters").WithCause(err)
	}

	filter := make(map[string]string)
	for key, values := range query {
		if key == "limit" || key == "offset" || len(values) == 0 {
			continue
		}
		filter[key] = values[0]
	}

	return ports.ListOptions{Filter: filter, Limit: q.Limit, Offset: q.Offset}, nil
}

func (h *ResourceHandler) storeError(op string, err error) error {
	if errors.Is(err, ports.ErrNotFound) {
		return apperrors.NewNotFoundError(h.collection).WithCause(err)
	}
	return apperrors.NewDatabaseError(op, err)
}

func (h *ResourceHandler) respond(w http.ResponseWriter, status int, body Response) {
	if err := apperrors.WriteJSON(w, status, body); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// decodeDocument reads a JSON object body of at most MaxBodyBytes.
func decodeDocument(w http.ResponseWriter, r *http.Request) (ports.Document, error) {
	var doc ports.Document
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&doc)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, apperrors.NewValidationError("Request body too large").
				WithCause(err).
				WithStatus(http.StatusRequestEntityTooLarge)
		case errors.Is(err, io.EOF):
			return nil, apperrors.NewValidationError("Request body is required")
		default:
			return nil, apperrors.NewValidationError("Invalid request body").WithCause(err)
		}
	}
	if doc == nil {
		return nil, apperrors.NewValidationError("Request body must be a JSON object")
	}
	return doc, nil
}
