package registration

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"smsrouter/pkg/store"

	"github.com/go-chi/chi/v5"
)

// Views serves read and edit endpoints for registered contacts.
type Views struct {
	store *store.Store
	log   *slog.Logger
}

type editRequest struct {
	Name string `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewViews(s *store.Store, log *slog.Logger) *Views {
	if log == nil {
		log = slog.Default()
	}

	return &Views{store: s, log: log.With("component", "apps.registration.views")}
}

// RegisterRoutes mounts the registration views on r.
func (v *Views) RegisterRoutes(r chi.Router) {
	r.Get("/registration", v.list)
	r.Get("/registration/{id}", v.show)
	r.Post("/registration/{id}/edit", v.edit)
}

func (v *Views) list(w http.ResponseWriter, r *http.Request) {
	contacts, err := v.store.List(r.Context())
	if err != nil {
		v.log.Error("Failed to list contacts", "error", err)
		v.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to list contacts"})
		return
	}

	v.writeJSON(w, http.StatusOK, contacts)
}

func (v *Views) show(w http.ResponseWriter, r *http.Request) {
	id, ok := v.contactID(w, r)
	if !ok {
		return
	}

	contact, err := v.store.Get(r.Context(), id)
	if err != nil {
		v.writeStoreError(w, err)
		return
	}

	v.writeJSON(w, http.StatusOK, contact)
}

func (v *Views) edit(w http.ResponseWriter, r *http.Request) {
	id, ok := v.contactID(w, r)
	if !ok {
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		v.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		v.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
		return
	}

	contact, err := v.store.UpdateName(r.Context(), id, name)
	if err != nil {
		v.writeStoreError(w, err)
		return
	}

	v.writeJSON(w, http.StatusOK, contact)
}

func (v *Views) contactID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		v.writeJSON(w, http.StatusNotFound, errorResponse{Error: store.ErrNotFound.Error()})
		return 0, false
	}

	return id, true
}

func (v *Views) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		v.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	v.log.Error("Contact store failure", "error", err)
	v.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func (v *Views) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		v.log.Error("Failed to write response", "error", err)
	}
}
