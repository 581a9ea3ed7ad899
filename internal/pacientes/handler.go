package pacientes

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

// Handler wires HTTP endpoints for the patient registry.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the patients handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers patient routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
}

type pacienteRequest struct {
	Nome     string `json:"nome" validate:"required,max=255"`
	CPF      string `json:"cpf" validate:"omitempty,len=11,numeric"`
	Telefone string `json:"telefone" validate:"omitempty,max=20"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req pacienteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), err.Error())
		return
	}
	paciente, err := h.service.Criar(r.Context(), identity.MedicoID, PacienteInput{
		Nome:     req.Nome,
		CPF:      req.CPF,
		Telefone: req.Telefone,
		Email:    req.Email,
	})
	if err != nil {
		h.logger.Error("create paciente", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, paciente)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	page := shared.ParsePage(r.URL.Query())
	pacientes, total, err := h.service.Listar(r.Context(), identity.MedicoID, r.URL.Query().Get("search"), page)
	if err != nil {
		h.logger.Error("list pacientes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewListResponse(pacientes, page, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "id invalido")
		return
	}
	paciente, err := h.service.Get(r.Context(), identity.MedicoID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, paciente)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "id invalido")
		return
	}
	var req pacienteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	paciente, err := h.service.Atualizar(r.Context(), identity.MedicoID, id, PacienteInput{
		Nome:     req.Nome,
		CPF:      req.CPF,
		Telefone: req.Telefone,
		Email:    req.Email,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, paciente)
}
