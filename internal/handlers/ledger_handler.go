package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sharefund/backend/internal/services"
)

// LedgerHandler is the public investor surface over the ledger operations.
type LedgerHandler struct {
	ledger    *services.LedgerService
	certs     *services.CertificateService
	validator *services.ValidationHelper
}

func NewLedgerHandler(ledgerService *services.LedgerService, certService *services.CertificateService) *LedgerHandler {
	return &LedgerHandler{
		ledger:    ledgerService,
		certs:     certService,
		validator: services.NewValidationHelper(),
	}
}

// RegisterRequest represents the new-investor registration payload
// @Description New investor registration structure
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,min=2" example:"Asha Kumari"`
	Phone           string `json:"phone" validate:"required,len=10,numeric" example:"9998887770"`
	Email           string `json:"email,omitempty" validate:"omitempty,email" example:"asha@example.com"`
	Amount          int64  `json:"amount" validate:"required,gt=0" example:"1500"`
	CertificateKind string `json:"certificateKind" validate:"required,oneof=small large" example:"small"`
}

// ReinvestRequest represents the reinvestment payload
type ReinvestRequest struct {
	AccountID string `json:"accountId" validate:"required" example:"aB3x_9"`
	Amount    int64  `json:"amount" validate:"required,gt=0" example:"500"`
}

// TransferRequest represents the peer-to-peer transfer payload
type TransferRequest struct {
	FromID string `json:"fromId" validate:"required" example:"aB3x_9"`
	ToID   string `json:"toId" validate:"required" example:"cD4e!_"`
	Amount int64  `json:"amount" validate:"required,gt=0" example:"1000"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

// Register creates a new investor account
// @Summary Register a new investor
// @Description Create an account with an initial investment and issue its identifier
// @Tags ledger
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} services.ErrorResponse
// @Router /register [post]
func (h *LedgerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	acct, err := h.ledger.Register(r.Context(), services.RegisterParams{
		Name:            req.Name,
		Phone:           req.Phone,
		Email:           req.Email,
		InitialAmount:   req.Amount,
		CertificateKind: req.CertificateKind,
	})
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	// Certificate generation is best-effort; the artifact can be rebuilt.
	if _, err := h.certs.Generate(acct); err != nil {
		log.Printf("[CERT] Failed to generate certificate for %s: %v", acct.ID, err)
	}

	certCost := h.certs.Cost(acct.CertificateKind)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"account":         acct,
		"certificateCost": certCost,
		"totalPayable":    acct.Balance + certCost,
	})
}

// Reinvest adds to an existing balance
// @Summary Reinvest into an account
// @Tags ledger
// @Accept json
// @Produce json
// @Param request body ReinvestRequest true "Reinvestment request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /reinvest [post]
func (h *LedgerHandler) Reinvest(w http.ResponseWriter, r *http.Request) {
	var req ReinvestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	acct, err := h.ledger.Reinvest(r.Context(), req.AccountID, req.Amount)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(acct)
}

// Transfer moves balance between two accounts
// @Summary Transfer profit shares between accounts
// @Tags ledger
// @Accept json
// @Produce json
// @Param request body TransferRequest true "Transfer request"
// @Success 200 {object} map[string]string
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /transfer [post]
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := h.ledger.Transfer(r.Context(), req.FromID, req.ToID, req.Amount); err != nil {
		services.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "transferred"})
}

// Verify looks up a holder by bearer identifier
// @Summary Verify a holder identifier
// @Description Return the account snapshot and transaction history; logs a verification entry
// @Tags ledger
// @Produce json
// @Param uid path string true "Account identifier"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} services.ErrorResponse
// @Router /verify/{uid} [get]
func (h *LedgerHandler) Verify(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	acct, transactions, err := h.ledger.Verify(r.Context(), uid)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"account":      acct,
		"transactions": transactions,
	})
}

// DownloadCertificate records a certificate download and classifies it
// @Summary Record a certificate download
// @Description First download of a file is the original, every repeat a duplicate
// @Tags ledger
// @Produce json
// @Param uid path string true "Account identifier"
// @Success 200 {object} map[string]string
// @Failure 404 {object} services.ErrorResponse
// @Router /certificates/{uid}/download [post]
func (h *LedgerHandler) DownloadCertificate(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	acct, err := h.ledger.Account(r.Context(), uid)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	fileName := h.certs.FileName(acct)
	if _, err := h.certs.Generate(acct); err != nil {
		log.Printf("[CERT] Failed to generate certificate for %s: %v", acct.ID, err)
		services.SendErrorResponse(w, "Certificate generation failed", http.StatusInternalServerError, nil)
		return
	}

	classification, err := h.ledger.RecordCertificateDownload(r.Context(), uid, fileName)
	if err != nil {
		services.SendDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"file":           fileName,
		"classification": classification,
	})
}

