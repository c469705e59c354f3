package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sharefund/backend/internal/services"
	"github.com/sharefund/backend/internal/store"
)

// AdminHandler exposes the administrative store surface: account listing,
// allow-listed field edits, note appends and irreversible deletion. All
// routes behind it require an admin JWT.
type AdminHandler struct {
	store     *store.AccountStore
	validator *services.ValidationHelper
}

func NewAdminHandler(accountStore *store.AccountStore) *AdminHandler {
	return &AdminHandler{
		store:     accountStore,
		validator: services.NewValidationHelper(),
	}
}

// UpdateFieldRequest carries one administrative field edit
type UpdateFieldRequest struct {
	Field string `json:"field" validate:"required" example:"name"`
	Value string `json:"value" validate:"required" example:"Asha K"`
}

// NoteRequest carries one administrative note
type NoteRequest struct {
	Text string `json:"text" validate:"required" example:"Certificate reprinted on request"`
}

// ListAccounts returns every account
// @Summary List all accounts
// @Tags admin
// @Produce json
// @Success 200 {array} ledger.Account
// @Router /admin/accounts [get]
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.List(r.Context())
	if err != nil {
		log.Printf("[ADMIN] Failed to list accounts: %v", err)
		services.SendErrorResponse(w, "Failed to list accounts", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

// UpdateField edits one allow-listed account field
// @Summary Edit an account field
// @Tags admin
// @Accept json
// @Produce json
// @Param uid path string true "Account identifier"
// @Param request body UpdateFieldRequest true "Field edit"
// @Success 200 {object} map[string]string
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/accounts/{uid}/field [put]
func (h *AdminHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	var req UpdateFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := h.store.UpdateField(r.Context(), uid, req.Field, req.Value); err != nil {
		services.SendDomainError(w, err)
		return
	}

	log.Printf("[ADMIN] Updated field %s on account %s", req.Field, uid)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
}

// AppendNote adds an administrative note to an account
// @Summary Append an administrative note
// @Tags admin
// @Accept json
// @Produce json
// @Param uid path string true "Account identifier"
// @Param request body NoteRequest true "Note"
// @Success 201 {object} map[string]string
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/accounts/{uid}/notes [post]
func (h *AdminHandler) AppendNote(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := h.store.AppendNote(r.Context(), uid, req.Text); err != nil {
		services.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "noted"})
}

// ListNotes returns an account's administrative notes
// @Summary List administrative notes
// @Tags admin
// @Produce json
// @Param uid path string true "Account identifier"
// @Success 200 {array} ledger.Note
// @Router /admin/accounts/{uid}/notes [get]
func (h *AdminHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	notes, err := h.store.Notes(r.Context(), uid)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(notes)
}

// DeleteAccount irreversibly removes an account and its logs
// @Summary Delete an account
// @Description Irreversible; cascades the transaction log away. The identifier is never reissued.
// @Tags admin
// @Param uid path string true "Account identifier"
// @Success 204 "deleted"
// @Router /admin/accounts/{uid} [delete]
func (h *AdminHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	if err := h.store.Delete(r.Context(), uid); err != nil {
		log.Printf("[ADMIN] Failed to delete account %s: %v", uid, err)
		services.SendErrorResponse(w, "Failed to delete account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ADMIN] Deleted account %s", uid)
	w.WriteHeader(http.StatusNoContent)
}
