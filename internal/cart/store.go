// Package cart holds a visitor's shopping cart and mirrors it to storage.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Varunjaishreeram/ayurvedic-store/internal/domain"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/events"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/notify"
	"github.com/Varunjaishreeram/ayurvedic-store/internal/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	storageKey   = "cart"
	writeTimeout = 5 * time.Second
)

var (
	ErrInvalidPrice = errors.New("product price is missing or not a number")
	ErrInvalidID    = errors.New("product id must be positive")
	// ErrStorageUnavailable means the stored cart could not be read. It is
	// not the same as an absent cart.
	ErrStorageUnavailable = errors.New("cart storage unavailable")
)

// ValidationError rejects an AddItem before any state changes.
type ValidationError struct {
	ProductID int64
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot add product %d: %v", e.ProductID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Point is a screen coordinate supplied by the UI.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Flourish tells the UI where to animate the product image from and to.
type Flourish struct {
	Image string `json:"img"`
	From  Point  `json:"from"`
	To    Point  `json:"to"`
}

type AddResult struct {
	Item     domain.CartLineItem `json:"item"`
	Merged   bool                `json:"merged"`
	Capped   bool                `json:"capped"`
	Flourish *Flourish           `json:"flourish,omitempty"`
}

type addOptions struct {
	origin *Flourish
}

type AddOption func(*addOptions)

// WithOrigin asks AddItem to return a Flourish from one point to another.
func WithOrigin(from, to Point) AddOption {
	return func(o *addOptions) {
		o.origin = &Flourish{From: from, To: to}
	}
}

type Store struct {
	mu    sync.Mutex
	items []domain.CartLineItem

	storage  storage.Storage
	notifier notify.Notifier
	events   events.Emitter
	logger   *zap.Logger
}

type Option func(*Store)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithEvents(e events.Emitter) Option {
	return func(s *Store) { s.events = e }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open rehydrates the cart from st. A missing or corrupt copy yields an
// empty cart. Any other read failure returns ErrStorageUnavailable, so the
// caller never writes an empty cart over one it failed to read.
func Open(ctx context.Context, st storage.Storage, opts ...Option) (*Store, error) {
	s := &Store{
		storage:  st,
		notifier: notify.Nop{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.items = items
	return s, nil
}

func (s *Store) load(ctx context.Context) ([]domain.CartLineItem, error) {
	raw, err := s.storage.Get(ctx, storageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("failed to read stored cart", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	var stored []domain.CartLineItem
	if err := json.Unmarshal(raw, &stored); err != nil {
		s.logger.Warn("stored cart is corrupt, starting empty", zap.Error(err))
		return nil, nil
	}

	items := make([]domain.CartLineItem, 0, len(stored))
	index := make(map[int64]int, len(stored))
	for _, it := range stored {
		if !it.Quantity.Valid() {
			s.logger.Warn("stored quantity out of range, clamping",
				zap.Int64("product_id", it.ProductID), zap.Int("quantity", it.Quantity.Int()))
			it.Quantity = domain.ClampQuantity(it.Quantity.Int())
		}
		if i, ok := index[it.ProductID]; ok {
			s.logger.Warn("duplicate line item in stored cart, merging", zap.Int64("product_id", it.ProductID))
			items[i].Quantity = domain.ClampQuantity(items[i].Quantity.Int() + it.Quantity.Int())
			continue
		}
		index[it.ProductID] = len(items)
		items = append(items, it)
	}
	return items, nil
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if len(s.items) == 0 {
		if err := s.storage.Remove(ctx, storageKey); err != nil {
			s.logger.Warn("failed to remove stored cart", zap.Error(err))
		}
		return
	}
	raw, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Warn("failed to encode cart", zap.Error(err))
		return
	}
	if err := s.storage.Set(ctx, storageKey, raw); err != nil {
		s.logger.Warn("failed to persist cart", zap.Error(err))
	}
}

func (s *Store) find(productID int64) int {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem merges quantity into the line item for product, creating it if
// needed. quantity below 1 is treated as 1. A merged quantity above the
// maximum is capped.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int, opts ...AddOption) (AddResult, error) {
	if product.ID <= 0 {
		return AddResult{}, &ValidationError{ProductID: product.ID, Err: ErrInvalidID}
	}
	if _, err := product.Price.Decimal(); err != nil {
		s.logger.Warn("rejecting product with invalid price",
			zap.Int64("product_id", product.ID), zap.String("price", product.Price.String()))
		return AddResult{}, &ValidationError{ProductID: product.ID, Err: fmt.Errorf("%w: %v", ErrInvalidPrice, err)}
	}
	if quantity < domain.MinQuantity {
		quantity = domain.MinQuantity
	}

	var ao addOptions
	for _, opt := range opts {
		opt(&ao)
	}

	s.mu.Lock()
	var res AddResult
	if i := s.find(product.ID); i >= 0 {
		sum := s.items[i].Quantity.Int() + quantity
		if sum > domain.MaxQuantity {
			s.logger.Warn("merged quantity capped",
				zap.Int64("product_id", product.ID), zap.Int("requested", sum))
			res.Capped = true
		}
		s.items[i].Quantity = domain.ClampQuantity(sum)
		res.Item = s.items[i]
		res.Merged = true
	} else {
		if quantity > domain.MaxQuantity {
			res.Capped = true
		}
		item := domain.NewLineItem(product, domain.ClampQuantity(quantity))
		s.items = append(s.items, item)
		res.Item = item
	}
	s.persist(ctx)
	s.mu.Unlock()

	if ao.origin != nil {
		f := *ao.origin
		f.Image = product.Image
		res.Flourish = &f
	}

	notify.Success(s.notifier, fmt.Sprintf("%s added to cart!", product.Name))
	s.events.Emit(ctx, events.TypeCartItemAdded, map[string]any{
		"product_id": product.ID,
		"quantity":   quantity,
		"line_qty":   res.Item.Quantity.Int(),
	})
	return res, nil
}

// UpdateQuantity sets the quantity of productID, clamped into [1, 99].
// It reports whether the product was in the cart.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, quantity int) bool {
	return s.setQuantity(ctx, productID, domain.ClampQuantity(quantity))
}

// UpdateQuantityInput is UpdateQuantity for raw user text; unparsable input
// counts as 1.
func (s *Store) UpdateQuantityInput(ctx context.Context, productID int64, raw string) bool {
	return s.setQuantity(ctx, productID, domain.ParseQuantity(raw))
}

func (s *Store) setQuantity(ctx context.Context, productID int64, q domain.Quantity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.find(productID)
	if i < 0 {
		return false
	}
	s.items[i].Quantity = q
	s.persist(ctx)
	return true
}

// RemoveItem deletes the line item for productID if present.
func (s *Store) RemoveItem(ctx context.Context, productID int64) bool {
	s.mu.Lock()
	i := s.find(productID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.persist(ctx)
	s.mu.Unlock()

	s.events.Emit(ctx, events.TypeCartItemRemoved, map[string]any{"product_id": productID})
	return true
}

// Clear empties the cart and removes the stored copy.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.items = nil
	s.persist(ctx)
	s.mu.Unlock()

	s.events.Emit(ctx, events.TypeCartCleared, nil)
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []domain.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartLineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) Total() decimal.Decimal {
	return Total(s.Items(), s.logger)
}

// Count is the sum of quantities, shown on the cart badge.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity.Int()
	}
	return n
}

func (s *Store) Snapshot() domain.CartSnapshot {
	items := s.Items()
	n := 0
	for _, it := range items {
		n += it.Quantity.Int()
	}
	return domain.CartSnapshot{
		Items: items,
		Total: Total(items, s.logger),
		Count: n,
	}
}

// Total sums price times quantity. An unparsable price counts as 0 and an
// out-of-range quantity is clamped; both are logged.
func Total(items []domain.CartLineItem, logger *zap.Logger) decimal.Decimal {
	if logger == nil {
		logger = zap.NewNop()
	}
	sum := decimal.Zero
	for _, it := range items {
		price, err := it.Price.Decimal()
		if err != nil {
			logger.Warn("line item price is not numeric, counting as 0",
				zap.Int64("product_id", it.ProductID), zap.String("price", it.Price.String()))
			continue
		}
		q := it.Quantity
		if !q.Valid() {
			logger.Warn("line item quantity out of range, coercing",
				zap.Int64("product_id", it.ProductID), zap.Int("quantity", q.Int()))
			q = domain.ClampQuantity(q.Int())
		}
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(q))))
	}
	return sum
}
