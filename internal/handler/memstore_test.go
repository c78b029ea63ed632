package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pixelhue/pixel-mosaic/internal/model"
	"github.com/pixelhue/pixel-mosaic/internal/payment"
	"github.com/pixelhue/pixel-mosaic/internal/repository"
)

// memStore is an in-memory ClaimStore with the same arbitration semantics
// as the MySQL repository: map-key uniqueness stands in for the primary
// key, and every method takes the lock so concurrent handler calls are
// serialized the way the database serializes statements.
type memStore struct {
	mu     sync.Mutex
	claims map[string]model.Claim
}

func newMemStore() *memStore {
	return &memStore{claims: make(map[string]model.Claim)}
}

func (s *memStore) InsertPending(_ context.Context, c *model.Claim) (repository.InsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[c.CellID]; exists {
		return repository.InsertConflict, nil
	}
	s.claims[c.CellID] = *c
	return repository.InsertCreated, nil
}

func (s *memStore) Finalize(_ context.Context, cellID, transactionID, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[cellID]
	if !ok || c.PaymentTransactionID != transactionID || c.PaymentStatus != model.ClaimStatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	c.PaymentStatus = model.ClaimStatusCompleted
	c.ConfirmedPaymentID = &paymentID
	c.ClaimedAt = &now
	c.ReservedAt = nil
	c.ReservedUntil = nil
	s.claims[cellID] = c
	return true, nil
}

func (s *memStore) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for id, c := range s.claims {
		if c.ExpiredAt(now) {
			delete(s.claims, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) GetByCell(_ context.Context, cellID string) (*model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[cellID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := c
	return &out, nil
}

func (s *memStore) ListAll(_ context.Context) ([]model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CellID < out[j].CellID })
	return out, nil
}

func (s *memStore) SetPersonalization(_ context.Context, cellID, transactionID, colorName, displayName, blurb string) (*model.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[cellID]
	if !ok || c.PaymentTransactionID != transactionID {
		return nil, repository.ErrNotFound
	}
	if c.PaymentStatus != model.ClaimStatusCompleted {
		return nil, repository.ErrPaymentNotConfirmed
	}
	now := time.Now().UTC()
	c.CustomColorName = &colorName
	c.OwnerDisplayName = &displayName
	c.Blurb = &blurb
	c.PersonalizedAt = &now
	s.claims[cellID] = c
	out := c
	return &out, nil
}

// seedPending inserts a pending reservation expiring at the given instant.
func (s *memStore) seedPending(cellID, color, fingerprint, transactionID string, reservedUntil time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reservedAt := reservedUntil.Add(-30 * time.Minute)
	s.claims[cellID] = model.Claim{
		CellID:               cellID,
		ColorValue:           color,
		OwnerFingerprint:     fingerprint,
		PaymentTransactionID: transactionID,
		AmountCents:          500,
		PaymentStatus:        model.ClaimStatusPending,
		ReservedAt:           &reservedAt,
		ReservedUntil:        &reservedUntil,
	}
}

// seedCompleted inserts a finalized claim.
func (s *memStore) seedCompleted(cellID, color, fingerprint, transactionID, paymentID string, claimedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claims[cellID] = model.Claim{
		CellID:               cellID,
		ColorValue:           color,
		OwnerFingerprint:     fingerprint,
		PaymentTransactionID: transactionID,
		ConfirmedPaymentID:   &paymentID,
		AmountCents:          500,
		PaymentStatus:        model.ClaimStatusCompleted,
		ClaimedAt:            &claimedAt,
	}
}

// MockStore is a testify mock over ClaimStore for tests that assert on the
// exact store interaction rather than end state.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertPending(ctx context.Context, c *model.Claim) (repository.InsertOutcome, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(repository.InsertOutcome), args.Error(1)
}

func (m *MockStore) Finalize(ctx context.Context, cellID, transactionID, paymentID string) (bool, error) {
	args := m.Called(ctx, cellID, transactionID, paymentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) GetByCell(ctx context.Context, cellID string) (*model.Claim, error) {
	args := m.Called(ctx, cellID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Claim), args.Error(1)
}

func (m *MockStore) ListAll(ctx context.Context) ([]model.Claim, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Claim), args.Error(1)
}

func (m *MockStore) SetPersonalization(ctx context.Context, cellID, transactionID, colorName, displayName, blurb string) (*model.Claim, error) {
	args := m.Called(ctx, cellID, transactionID, colorName, displayName, blurb)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Claim), args.Error(1)
}

// MockGateway is a testify mock over CheckoutGateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckout(ctx context.Context, amountCents uint32, currency string, meta payment.Metadata) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, amountCents, currency, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}
