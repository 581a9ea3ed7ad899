package estoque

import (
	"errors"
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

// Handler wires HTTP endpoints for the stock module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/produtos", h.createProduto)
	r.Get("/produtos", h.listProdutos)
	r.Get("/produtos/{id}", h.getProduto)
	r.Put("/produtos/{id}", h.updateProduto)
	r.Post("/movimentacoes", h.createMovimentacao)
	r.Get("/movimentacoes", h.listMovimentacoes)
	r.Post("/lotes", h.createLote)
	r.Get("/lotes", h.listLotes)
	r.Put("/lotes/{id}", h.updateLote)
	r.Delete("/lotes/{id}", h.deleteLote)
}

type produtoRequest struct {
	Nome          string          `json:"nome" validate:"required,max=255"`
	Descricao     string          `json:"descricao" validate:"max=2000"`
	EstoqueMinimo int64           `json:"estoque_minimo" validate:"gte=0"`
	PrecoUnitario decimal.Decimal `json:"preco_unitario"`
}

type movimentacaoRequest struct {
	ProdutoID        uuid.UUID  `json:"produto_id" validate:"required"`
	LoteID           *uuid.UUID `json:"lote_id"`
	Tipo             string     `json:"tipo_movimentacao" validate:"required,oneof=ENTRADA SAIDA AJUSTE"`
	Quantidade       int64      `json:"quantidade" validate:"required"`
	DataMovimentacao string     `json:"data_movimentacao"`
	Observacao       string     `json:"observacao" validate:"max=2000"`
}

type loteRequest struct {
	ProdutoID    uuid.UUID `json:"produto_id"`
	NumeroLote   string    `json:"numero_lote" validate:"max=100"`
	Quantidade   int64     `json:"quantidade" validate:"required"`
	DataValidade string    `json:"data_validade" validate:"required"`
}

func (h *Handler) createProduto(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req produtoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), err.Error())
		return
	}
	produto, err := h.service.CriarProduto(r.Context(), identity.MedicoID, ProdutoInput{
		Nome:          req.Nome,
		Descricao:     req.Descricao,
		EstoqueMinimo: req.EstoqueMinimo,
		PrecoUnitario: req.PrecoUnitario,
	})
	if err != nil {
		h.logger.Error("create produto", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, produto)
}

func (h *Handler) listProdutos(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	page := shared.ParsePage(r.URL.Query())
	abaixoMinimo := r.URL.Query().Get("abaixo_minimo") == "true"
	produtos, total, err := h.service.ListarProdutos(r.Context(), identity.MedicoID, abaixoMinimo, page)
	if err != nil {
		h.logger.Error("list produtos", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewListResponse(produtos, page, total))
}

func (h *Handler) getProduto(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "id invalido")
		return
	}
	produto, err := h.service.GetProduto(r.Context(), identity.MedicoID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, produto)
}

func (h *Handler) updateProduto(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "id invalido")
		return
	}
	var req produtoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	produto, err := h.service.AtualizarProduto(r.Context(), identity.MedicoID, id, ProdutoInput{
		Nome:          req.Nome,
		Descricao:     req.Descricao,
		EstoqueMinimo: req.EstoqueMinimo,
		PrecoUnitario: req.PrecoUnitario,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, produto)
}

func (h *Handler) createMovimentacao(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req movimentacaoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), err.Error())
		return
	}
	input := MovimentacaoInput{
		ProdutoID:  req.ProdutoID,
		LoteID:     req.LoteID,
		Tipo:       TipoMovimentacao(req.Tipo),
		Quantidade: req.Quantidade,
		Observacao: req.Observacao,
	}
	if req.DataMovimentacao != "" {
		ocorrida, err := time.Parse("2006-01-02", req.DataMovimentacao)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "data_movimentacao invalida")
			return
		}
		input.DataMovimentacao = ocorrida
	}
	mov, err := h.service.RegistrarMovimentacao(r.Context(), identity.MedicoID, input)
	if err != nil {
		h.respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mov)
}

func (h *Handler) listMovimentacoes(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	q := r.URL.Query()
	page := shared.ParsePage(q)
	var filter MovimentacaoFilter
	if raw := q.Get("produto_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "produto_id invalido")
			return
		}
		filter.ProdutoID = &id
	}
	if raw := q.Get("tipo_movimentacao"); raw != "" {
		tipo := TipoMovimentacao(raw)
		filter.Tipo = &tipo
	}
	movs, total, err := h.service.ListarMovimentacoes(r.Context(), identity.MedicoID, filter, page)
	if err != nil {
		h.respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewListResponse(movs, page, total))
}

func (h *Handler) createLote(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var req loteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), err.Error())
		return
	}
	input, err := loteInputFromRequest(req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lote, err := h.service.CriarLote(r.Context(), identity.MedicoID, input)
	if err != nil {
		h.respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lote)
}

func (h *Handler) listLotes(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	var produtoID *uuid.UUID
	if raw := r.URL.Query().Get("produto_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "produto_id invalido")
			return
		}
		produtoID = &id
	}
	lotes, err := h.service.ListarLotes(r.Context(), identity.MedicoID, produtoID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": lotes})
}

func (h *Handler) updateLote(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "id invalido")
		return
	}
	var req loteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := loteInputFromRequest(req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lote, err := h.service.AtualizarLote(r.Context(), identity.MedicoID, id, input)
	if err != nil {
		h.respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lote)
}

func (h *Handler) deleteLote(w http.ResponseWriter, r *http.Request) {
	identity, _ := shared.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), "id invalido")
		return
	}
	if err := h.service.RemoverLote(r.Context(), identity.MedicoID, id); err != nil {
		h.respondMovementError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func loteInputFromRequest(req loteRequest) (LoteInput, error) {
	input := LoteInput{
		ProdutoID:  req.ProdutoID,
		NumeroLote: req.NumeroLote,
		Quantidade: req.Quantidade,
	}
	if req.DataValidade != "" {
		validade, err := time.Parse("2006-01-02", req.DataValidade)
		if err != nil {
			return LoteInput{}, httpx.ErrValidation
		}
		input.DataValidade = validade
	}
	return input, nil
}

// respondMovementError maps stock guard errors to 400 before falling back
// to the shared mapping.
func (h *Handler) respondMovementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSaldoInsuficiente),
		errors.Is(err, ErrLoteInsuficiente),
		errors.Is(err, ErrQuantidadeInvalida),
		errors.Is(err, ErrTipoInvalido),
		errors.Is(err, ErrLoteDeOutroProduto):
		httpx.Error(w, http.StatusBadRequest, httpx.ErrValidation.Error(), err.Error())
	default:
		h.logger.Error("estoque operation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
