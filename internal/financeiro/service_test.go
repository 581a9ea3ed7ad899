package financeiro

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/clinora/clinora/internal/financeiro/asaas"
	"github.com/clinora/clinora/internal/pacientes"
	"github.com/clinora/clinora/internal/platform/httpx"
	"github.com/clinora/clinora/internal/shared"
)

type fakeChargeRepo struct {
	mu         sync.Mutex
	cobrancas  map[uuid.UUID]Cobranca
	failInsert bool
}

func newFakeChargeRepo() *fakeChargeRepo {
	return &fakeChargeRepo{cobrancas: map[uuid.UUID]Cobranca{}}
}

func (r *fakeChargeRepo) Insert(_ context.Context, c Cobranca) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInsert {
		return errors.New("connection reset")
	}
	r.cobrancas[c.ID] = c
	return nil
}

func (r *fakeChargeRepo) Get(_ context.Context, medicoID, id uuid.UUID) (Cobranca, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cobrancas[id]
	if !ok || c.MedicoID != medicoID {
		return Cobranca{}, httpx.ErrNotFound
	}
	return c, nil
}

func (r *fakeChargeRepo) List(_ context.Context, medicoID uuid.UUID, filter CobrancaFilter, page shared.Page) ([]Cobranca, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Cobranca{}
	for _, c := range r.cobrancas {
		if c.MedicoID != medicoID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *fakeChargeRepo) UpdateLinks(_ context.Context, medicoID, id uuid.UUID, link string, qr, payload *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cobrancas[id]
	if !ok || c.MedicoID != medicoID {
		return httpx.ErrNotFound
	}
	c.LinkPagamento = link
	c.PixQrCode = qr
	c.PixPayload = payload
	r.cobrancas[id] = c
	return nil
}

func (r *fakeChargeRepo) MarkOverdue(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.cobrancas {
		if c.Status == StatusPendente && c.DataVencimento.Before(before) {
			c.Status = StatusVencido
			r.cobrancas[id] = c
			n++
		}
	}
	return n, nil
}

type fakeGateway struct {
	mu              sync.Mutex
	customersCalled int
	chargesCalled   int
	qrErr           error
	chargeErr       error
}

func (g *fakeGateway) CreateCustomer(_ context.Context, _ string, input asaas.CustomerInput) (asaas.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customersCalled++
	return asaas.Customer{ID: "cus_" + input.Name, Name: input.Name}, nil
}

func (g *fakeGateway) CreateCharge(_ context.Context, _ string, input asaas.ChargeInput) (asaas.Charge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return asaas.Charge{}, g.chargeErr
	}
	g.chargesCalled++
	return asaas.Charge{ID: "pay_" + input.ExternalReference[:8], Status: "PENDING", InvoiceURL: "https://pay.example/" + input.ExternalReference}, nil
}

func (g *fakeGateway) GetCharge(_ context.Context, _, chargeID string) (asaas.Charge, error) {
	return asaas.Charge{ID: chargeID, Status: "PENDING", InvoiceURL: "https://pay.example/refreshed"}, nil
}

func (g *fakeGateway) GetPixQrCode(_ context.Context, _, _ string) (asaas.PixQr, error) {
	if g.qrErr != nil {
		return asaas.PixQr{}, g.qrErr
	}
	return asaas.PixQr{EncodedImage: "iVBORw0KGgo=", Payload: "00020126"}, nil
}

type fakePacientes struct {
	mu       sync.Mutex
	paciente pacientes.Paciente
	claims   int
}

func (p *fakePacientes) Get(_ context.Context, medicoID, id uuid.UUID) (pacientes.Paciente, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paciente.ID != id || p.paciente.MedicoID != medicoID {
		return pacientes.Paciente{}, httpx.ErrNotFound
	}
	return p.paciente, nil
}

func (p *fakePacientes) ClaimCustomerID(_ context.Context, _, _ uuid.UUID, customerID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claims++
	if p.paciente.AsaasCustomerID == "" {
		p.paciente.AsaasCustomerID = customerID
	}
	return p.paciente.AsaasCustomerID, nil
}

type fakeCreds struct {
	cred Credenciais
	err  error
}

func (c *fakeCreds) Load(context.Context, uuid.UUID) (Credenciais, error) {
	if c.err != nil {
		return Credenciais{}, c.err
	}
	return c.cred, nil
}

type fakeJobs struct {
	mu       sync.Mutex
	enqueued []string
}

func (j *fakeJobs) EnqueueCompensateCharge(_ context.Context, _ uuid.UUID, asaasID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.enqueued = append(j.enqueued, asaasID)
	return nil
}

type fixture struct {
	service   *Service
	repo      *fakeChargeRepo
	gateway   *fakeGateway
	pacientes *fakePacientes
	jobs      *fakeJobs
	medicoID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	medicoID := uuid.New()
	pac := &fakePacientes{paciente: pacientes.Paciente{
		ID:       uuid.New(),
		MedicoID: medicoID,
		Nome:     "Maria Souza",
		CPF:      "12345678901",
	}}
	repo := newFakeChargeRepo()
	gateway := &fakeGateway{}
	jobs := &fakeJobs{}
	creds := &fakeCreds{cred: Credenciais{APIKey: "key", PixKey: "pix@clinic.example"}}
	svc := NewService(slog.New(slog.DiscardHandler), repo, gateway, pac, creds, jobs, nil)
	return &fixture{service: svc, repo: repo, gateway: gateway, pacientes: pac, jobs: jobs, medicoID: medicoID}
}

func validInput(f *fixture) CobrancaInput {
	return CobrancaInput{
		PacienteID:     f.pacientes.paciente.ID,
		Valor:          decimal.NewFromFloat(150.00),
		Metodo:         MetodoPix,
		DataVencimento: time.Now().UTC().AddDate(0, 0, 7),
	}
}

func TestCriarCobrancaPix(t *testing.T) {
	f := newFixture(t)

	cobranca, err := f.service.CriarCobranca(context.Background(), f.medicoID, validInput(f))
	require.NoError(t, err)
	require.Equal(t, StatusPendente, cobranca.Status)
	require.NotEmpty(t, cobranca.AsaasID)
	require.NotEmpty(t, cobranca.LinkPagamento)
	require.NotNil(t, cobranca.PixQrCode)
	require.NotEmpty(t, cobranca.Descricao)

	stored, err := f.service.Get(context.Background(), f.medicoID, cobranca.ID)
	require.NoError(t, err)
	require.True(t, stored.Valor.Equal(decimal.NewFromFloat(150.00)))
}

func TestCriarCobrancaPixQrDegraded(t *testing.T) {
	f := newFixture(t)
	f.gateway.qrErr = errors.New("qr endpoint down")

	cobranca, err := f.service.CriarCobranca(context.Background(), f.medicoID, validInput(f))
	require.NoError(t, err)
	require.Nil(t, cobranca.PixQrCode)
	require.NotEmpty(t, cobranca.LinkPagamento)
}

func TestCriarCobrancaValidation(t *testing.T) {
	f := newFixture(t)

	input := validInput(f)
	input.Valor = decimal.Zero
	_, err := f.service.CriarCobranca(context.Background(), f.medicoID, input)
	require.ErrorIs(t, err, httpx.ErrValidation)

	input = validInput(f)
	input.DataVencimento = time.Now().UTC().AddDate(0, 0, -1)
	_, err = f.service.CriarCobranca(context.Background(), f.medicoID, input)
	require.ErrorIs(t, err, httpx.ErrValidation)

	input = validInput(f)
	input.Metodo = "CHEQUE"
	_, err = f.service.CriarCobranca(context.Background(), f.medicoID, input)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCriarCobrancaTenantScope(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CriarCobranca(context.Background(), uuid.New(), validInput(f))
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestSingleProviderCustomer(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.service.CriarCobranca(context.Background(), f.medicoID, validInput(f))
		require.NoError(t, err)
	}
	require.Equal(t, 1, f.gateway.customersCalled)
	require.Equal(t, 3, f.gateway.chargesCalled)
}

func TestCriarCobrancaPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.failInsert = true

	_, err := f.service.CriarCobranca(context.Background(), f.medicoID, validInput(f))
	require.ErrorIs(t, err, httpx.ErrReconciliation)
	require.Len(t, f.jobs.enqueued, 1)
}

func TestRegenerarLink(t *testing.T) {
	f := newFixture(t)

	cobranca, err := f.service.CriarCobranca(context.Background(), f.medicoID, validInput(f))
	require.NoError(t, err)

	refreshed, err := f.service.RegenerarLink(context.Background(), f.medicoID, cobranca.ID)
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/refreshed", refreshed.LinkPagamento)

	// Terminal charges keep their link.
	c := f.repo.cobrancas[cobranca.ID]
	c.Status = StatusPago
	f.repo.cobrancas[cobranca.ID] = c
	_, err = f.service.RegenerarLink(context.Background(), f.medicoID, cobranca.ID)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestSweepVencidas(t *testing.T) {
	f := newFixture(t)

	cobranca, err := f.service.CriarCobranca(context.Background(), f.medicoID, validInput(f))
	require.NoError(t, err)

	c := f.repo.cobrancas[cobranca.ID]
	c.DataVencimento = time.Now().UTC().AddDate(0, 0, -2)
	f.repo.cobrancas[cobranca.ID] = c

	n, err := f.service.SweepVencidas(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	after, err := f.service.Get(context.Background(), f.medicoID, cobranca.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVencido, after.Status)
}
