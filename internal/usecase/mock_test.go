//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tappay-gateway/internal/domain"
	"tappay-gateway/internal/domain/model"
	"tappay-gateway/internal/domain/ports/adapter"
	"tappay-gateway/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func strPtr(s string) *string { return &s }

// =============================
// Adapters
// =============================

// ---- Mock TapClient ----

type tapCall struct {
	Method string
	Req    adapter.TapRequest
}

type MockTapClient struct {
	mu    sync.Mutex
	Calls []tapCall

	AuthorizeFunc          func(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error)
	AuthorizeCaptureFunc   func(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error)
	AuthorizeVoidFunc      func(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error)
	RefundFunc             func(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error)
	GetAuthorizeStatusFunc func(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error)
}

var _ adapter.TapClient = (*MockTapClient)(nil)

func (m *MockTapClient) record(method string, req adapter.TapRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, tapCall{Method: method, Req: req})
}

// CallsTo returns the recorded requests of one method.
func (m *MockTapClient) CallsTo(method string) []adapter.TapRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []adapter.TapRequest
	for _, c := range m.Calls {
		if c.Method == method {
			out = append(out, c.Req)
		}
	}
	return out
}

func (m *MockTapClient) invoke(ctx context.Context, method string, req adapter.TapRequest, fn func(context.Context, adapter.TapRequest) (adapter.TapResponse, error)) (adapter.TapResponse, error) {
	m.record(method, req)
	if fn != nil {
		return fn(ctx, req)
	}
	return nil, fmt.Errorf("unexpected %s call", method)
}

func (m *MockTapClient) Authorize(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error) {
	return m.invoke(ctx, "authorize", req, m.AuthorizeFunc)
}

func (m *MockTapClient) AuthorizeCapture(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error) {
	return m.invoke(ctx, "authorize_capture", req, m.AuthorizeCaptureFunc)
}

func (m *MockTapClient) AuthorizeVoid(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error) {
	return m.invoke(ctx, "authorize_void", req, m.AuthorizeVoidFunc)
}

func (m *MockTapClient) Refund(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error) {
	return m.invoke(ctx, "refund", req, m.RefundFunc)
}

func (m *MockTapClient) GetAuthorizeStatus(ctx context.Context, req adapter.TapRequest) (adapter.TapResponse, error) {
	return m.invoke(ctx, "get_authorize_status", req, m.GetAuthorizeStatusFunc)
}

// respond returns a fixed vendor payload.
func respond(resp adapter.TapResponse) func(context.Context, adapter.TapRequest) (adapter.TapResponse, error) {
	return func(context.Context, adapter.TapRequest) (adapter.TapResponse, error) { return resp, nil }
}

// =============================
// Repositories
// =============================

// ---- Payments ----

type MockPaymentRepo struct {
	mu       sync.RWMutex
	payments map[int64]*model.Payment

	FindByIDFunc    func(ctx context.Context, qx repository.Tx, id int64) (*model.Payment, error)
	AttachOrderFunc func(ctx context.Context, qx repository.Tx, paymentID int64, orderID string) error
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{payments: make(map[int64]*model.Payment)}
}

func (m *MockPaymentRepo) Put(p *model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
}

func (m *MockPaymentRepo) FindByID(ctx context.Context, qx repository.Tx, id int64) (*model.Payment, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, qx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindActiveForGateway(ctx context.Context, qx repository.Tx, id int64, gateway string) (*model.Payment, error) {
	p, err := m.FindByID(ctx, qx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive || p.Gateway != gateway {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockPaymentRepo) AttachOrder(ctx context.Context, qx repository.Tx, paymentID int64, orderID string) error {
	if m.AttachOrderFunc != nil {
		return m.AttachOrderFunc(ctx, qx, paymentID, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	p.OrderID = strPtr(orderID)
	return nil
}

// ---- Transactions ----

type MockTransactionRepo struct {
	mu  sync.RWMutex
	log []*model.Transaction
	seq int

	CreateFunc func(ctx context.Context, qx repository.Tx, t *model.Transaction) error
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{}
}

func (m *MockTransactionRepo) Create(ctx context.Context, qx repository.Tx, t *model.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, qx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if t.ID == "" {
		t.ID = fmt.Sprintf("tx-%04d", m.seq)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	cp := *t
	m.log = append(m.log, &cp)
	return nil
}

// Seed appends entries as if they had been recorded earlier.
func (m *MockTransactionRepo) Seed(ts ...*model.Transaction) {
	for _, t := range ts {
		_ = m.Create(context.Background(), nil, t)
	}
}

func matches(t *model.Transaction, f model.TransactionFilter) bool {
	if t.PaymentID != f.PaymentID {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if t.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IsSuccess != nil && t.IsSuccess != *f.IsSuccess {
		return false
	}
	if f.ActionRequired != nil && t.ActionRequired != *f.ActionRequired {
		return false
	}
	if f.NonEmptyToken && t.Token == "" {
		return false
	}
	if f.Amount != nil && !t.Amount.Equal(*f.Amount) {
		return false
	}
	if f.Currency != "" && t.Currency != f.Currency {
		return false
	}
	return true
}

func (m *MockTransactionRepo) Find(ctx context.Context, qx repository.Tx, f model.TransactionFilter) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hit *model.Transaction
	for _, t := range m.log {
		if !matches(t, f) {
			continue
		}
		hit = t
		if !f.Newest {
			break
		}
	}
	if hit == nil {
		return nil, domain.ErrNotFound
	}
	cp := *hit
	return &cp, nil
}

func (m *MockTransactionRepo) ListByPayment(ctx context.Context, qx repository.Tx, paymentID int64) ([]*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Transaction
	for _, t := range m.log {
		if t.PaymentID == paymentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Kinds lists the recorded kinds of a payment in order.
func (m *MockTransactionRepo) Kinds(paymentID int64) []model.TransactionKind {
	ts, _ := m.ListByPayment(context.Background(), nil, paymentID)
	out := make([]model.TransactionKind, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Kind)
	}
	return out
}

// ---- Checkouts ----

type MockCheckoutRepo struct {
	mu        sync.RWMutex
	checkouts map[string]*model.Checkout
}

var _ repository.CheckoutRepository = (*MockCheckoutRepo)(nil)

func NewMockCheckoutRepo() *MockCheckoutRepo {
	return &MockCheckoutRepo{checkouts: make(map[string]*model.Checkout)}
}

func (m *MockCheckoutRepo) Put(c *model.Checkout) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.checkouts[c.Token] = &cp
}

func (m *MockCheckoutRepo) FindByToken(ctx context.Context, qx repository.Tx, token string) (*model.Checkout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checkouts[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCheckoutRepo) MarkCompleted(ctx context.Context, qx repository.Tx, token string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.checkouts[token]
	if !ok {
		return domain.ErrNotFound
	}
	c.CompletedAt = &at
	return nil
}

// ---- Orders ----

type MockOrderRepo struct {
	mu     sync.RWMutex
	orders map[string]*model.Order

	CreateFunc func(ctx context.Context, qx repository.Tx, o *model.Order) error
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[string]*model.Order)}
}

func (m *MockOrderRepo) Create(ctx context.Context, qx repository.Tx, o *model.Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, qx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.CheckoutToken]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *o
	m.orders[o.CheckoutToken] = &cp
	return nil
}

func (m *MockOrderRepo) FindByCheckout(ctx context.Context, qx repository.Tx, checkoutToken string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[checkoutToken]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepo) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

// ---- Mock Transaction Manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory payment lease ----

// MockLocker blocks a second holder of the same payment until the first
// releases, like the Redis lease.
type MockLocker struct {
	mu       sync.Mutex
	held     map[int64]chan struct{}
	waiting  int
	Acquired int
	Released int
	Err      error
}

var _ repository.PaymentLocker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[int64]chan struct{})}
}

func (m *MockLocker) Acquire(ctx context.Context, paymentID int64) (func(), error) {
	for {
		m.mu.Lock()
		if m.Err != nil {
			m.mu.Unlock()
			return nil, m.Err
		}
		busy, ok := m.held[paymentID]
		if !ok {
			done := make(chan struct{})
			m.held[paymentID] = done
			m.Acquired++
			m.mu.Unlock()
			var once sync.Once
			return func() {
				once.Do(func() {
					m.mu.Lock()
					defer m.mu.Unlock()
					delete(m.held, paymentID)
					m.Released++
					close(done)
				})
			}, nil
		}
		m.waiting++
		m.mu.Unlock()

		select {
		case <-busy:
		case <-ctx.Done():
		}
		m.mu.Lock()
		m.waiting--
		m.mu.Unlock()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// Waiting reports how many callers are blocked on a held lease.
func (m *MockLocker) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

// =============================
// Fixtures
// =============================

const (
	testPaymentID     int64 = 42
	testCheckoutToken       = "5f4a2c0e-3b1d-4f8e-9a51-0c7d2e6b1a90"
	testReturnURL           = "https://shop.example.com/checkout/complete"
	testPublicURL           = "https://gw.example.com"
)

var testTotal = decimal.RequireFromString("10.50")

func testPayment() *model.Payment {
	return &model.Payment{
		ID:            testPaymentID,
		Token:         "",
		Gateway:       "tappayment.gosell",
		IsActive:      true,
		ReturnURL:     testReturnURL,
		CheckoutToken: strPtr(testCheckoutToken),
		Total:         testTotal,
		Currency:      "KWD",
		CustomerEmail: "shopper@example.com",
	}
}

func testCheckout() *model.Checkout {
	return &model.Checkout{
		Token:    testCheckoutToken,
		Email:    "shopper@example.com",
		Total:    testTotal,
		Currency: "KWD",
	}
}

func testPaymentData() model.PaymentData {
	return model.PaymentData{
		Amount:           testTotal,
		Currency:         "KWD",
		CustomerEmail:    "shopper@example.com",
		PaymentID:        testPaymentID,
		GraphQLPaymentID: model.ToGlobalID(model.GlobalTypePayment, testPaymentID),
		CheckoutToken:    testCheckoutToken,
	}
}
