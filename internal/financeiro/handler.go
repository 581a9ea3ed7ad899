package financeiro

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

// Handler wires HTTP endpoints for charges and gateway credentials.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	credentials *CredentialStore
	validate    *validator.Validate
}

// NewHandler constructs the billing handler.
func NewHandler(logger *slog.Logger, service *Service, credentials *CredentialStore) *Handler {
	return &Handler{logger: logger, service: service, credentials: credentials, validate: validator.New()}
}

// MountRoutes registers billing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/cobrancas", func(r chi.Router) {
		r.Post("/", h.createCobranca)
		r.Get("/", h.listCobrancas)
		r.Get("/{id}", h.getCobranca)
		r.Post("/{id}/gerar-link", h.regenerateLink)
	})
	r.Put("/credenciais", h.saveCredenciais)
}

type cobrancaRequest struct {
	PacienteID     string `json:"paciente_id" validate:"required,uuid"`
	Valor          string `json:"valor" validate:"required"`
	Descricao      string `json:"descricao" validate:"omitempty,max=500"`
	Metodo         string `json:"metodo_pagamento" validate:"required,oneof=PIX BOLETO CREDIT_CARD UNDEFINED"`
	DataVencimento string `json:"data_vencimento" validate:"required"`
}

func (h *Handler) createCobranca(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req cobrancaRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), err.Error())
		return
	}
	pacienteID, err := uuid.Parse(req.PacienteID)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "paciente_id invalido")
		return
	}
	valor, err := decimal.NewFromString(req.Valor)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "valor invalido")
		return
	}
	vencimento, err := time.Parse("2006-01-02", req.DataVencimento)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "data_vencimento invalida, use YYYY-MM-DD")
		return
	}
	cobranca, err := h.service.CriarCobranca(r.Context(), identity.MedicoID, CobrancaInput{
		PacienteID:     pacienteID,
		Valor:          valor,
		Descricao:      req.Descricao,
		Metodo:         MetodoPagamento(req.Metodo),
		DataVencimento: vencimento,
	})
	if err != nil {
		h.logger.Error("create cobranca", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cobranca)
}

func (h *Handler) listCobrancas(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	page := shared.ParsePage(r.URL.Query())

	filter := CobrancaFilter{}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := StatusCobranca(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("paciente_id"); raw != "" {
		pacienteID, err := uuid.Parse(raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "paciente_id invalido")
			return
		}
		filter.PacienteID = &pacienteID
	}

	cobrancas, total, err := h.service.Listar(r.Context(), identity.MedicoID, filter, page)
	if err != nil {
		h.logger.Error("list cobrancas", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewListResponse(cobrancas, page, total))
}

func (h *Handler) getCobranca(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "id invalido")
		return
	}
	cobranca, err := h.service.Get(r.Context(), identity.MedicoID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cobranca)
}

func (h *Handler) regenerateLink(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "id invalido")
		return
	}
	cobranca, err := h.service.RegenerarLink(r.Context(), identity.MedicoID, id)
	if err != nil {
		h.logger.Error("regenerate link", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cobranca)
}

type credenciaisRequest struct {
	APIKey string `json:"api_key" validate:"required,min=16"`
	PixKey string `json:"pix_key" validate:"omitempty,max=140"`
}

func (h *Handler) saveCredenciais(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req credenciaisRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), err.Error())
		return
	}
	if err := h.credentials.Save(r.Context(), identity.MedicoID, Credenciais{APIKey: req.APIKey, PixKey: req.PixKey}); err != nil {
		h.logger.Error("save credenciais", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
