// Package memory provides an in-memory transactional store implementing
// every repository of the service. Transactions are serialized and work on
// a copy that is published on commit.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/xenking/fieldservice-sale/internal/domain/auth"
	"github.com/xenking/fieldservice-sale/internal/domain/fsm"
	"github.com/xenking/fieldservice-sale/internal/domain/message"
	"github.com/xenking/fieldservice-sale/internal/domain/product"
	"github.com/xenking/fieldservice-sale/internal/domain/sale"
)

type data struct {
	products  map[string]product.Product
	orders    map[string]sale.Order
	lines     map[string]sale.Line
	lineOrder []string
	fsmOrders map[string]fsm.Order
	fsmOrder  []string
	stages    map[string]fsm.Stage
	locations map[string]fsm.Location
	messages  []message.Message
	apiKeys   map[string]auth.APIKeyInfo

	orderSeq int
	fsmSeq   int
}

func newData() data {
	return data{
		products:  make(map[string]product.Product),
		orders:    make(map[string]sale.Order),
		lines:     make(map[string]sale.Line),
		fsmOrders: make(map[string]fsm.Order),
		stages:    make(map[string]fsm.Stage),
		locations: make(map[string]fsm.Location),
		apiKeys:   make(map[string]auth.APIKeyInfo),
	}
}

func (d data) clone() data {
	return data{
		products:  maps.Clone(d.products),
		orders:    maps.Clone(d.orders),
		lines:     maps.Clone(d.lines),
		lineOrder: slices.Clone(d.lineOrder),
		fsmOrders: maps.Clone(d.fsmOrders),
		fsmOrder:  slices.Clone(d.fsmOrder),
		stages:    maps.Clone(d.stages),
		locations: maps.Clone(d.locations),
		messages:  slices.Clone(d.messages),
		apiKeys:   maps.Clone(d.apiKeys),
		orderSeq:  d.orderSeq,
		fsmSeq:    d.fsmSeq,
	}
}

// Store holds all records in memory.
type Store struct {
	// txMu serializes writers; mu guards the committed state d.
	txMu sync.Mutex
	mu   sync.RWMutex
	d    data
	now  func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{d: newData(), now: time.Now}
}

type txKey struct{}

var _ sale.TxRunner = (*Store)(nil)

// WithinTx runs fn against a private copy of the store that replaces the
// committed state only when fn succeeds. Reads outside the transaction keep
// seeing the committed state meanwhile. Nested calls join the outer
// transaction. Like a database transaction, the ctx passed to fn must not
// be used concurrently.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*data); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.d.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, &work)); err != nil {
		return err
	}
	s.mu.Lock()
	s.d = work
	s.mu.Unlock()
	return nil
}

// read runs fn on the working copy of the transaction in ctx, or on the
// committed state.
func (s *Store) read(ctx context.Context, fn func(d *data)) {
	if work, ok := ctx.Value(txKey{}).(*data); ok {
		fn(work)
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.d)
}

// write outside a transaction waits for the running one to finish so that
// its commit cannot overwrite the change.
func (s *Store) write(ctx context.Context, fn func(d *data) error) error {
	if work, ok := ctx.Value(txKey{}).(*data); ok {
		return fn(work)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.d)
}

// Orders returns the sale order repository.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// Lines returns the sale line repository.
func (s *Store) Lines() *LineRepository { return &LineRepository{s: s} }

// Products returns the product repository.
func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

// FSMOrders returns the field service order repository.
func (s *Store) FSMOrders() *FSMOrderRepository { return &FSMOrderRepository{s: s} }

// Stages returns the stage repository.
func (s *Store) Stages() *StageRepository { return &StageRepository{s: s} }

// Locations returns the location repository.
func (s *Store) Locations() *LocationRepository { return &LocationRepository{s: s} }

// Messages returns the message repository.
func (s *Store) Messages() *MessageRepository { return &MessageRepository{s: s} }

// APIKeys returns the API key repository.
func (s *Store) APIKeys() *APIKeyRepository { return &APIKeyRepository{s: s} }

// Repositories returns every sale collaborator backed by s.
func (s *Store) Repositories() sale.Repositories {
	return sale.Repositories{
		Orders:    s.Orders(),
		Lines:     s.Lines(),
		Products:  s.Products(),
		FSMOrders: s.FSMOrders(),
		Stages:    s.Stages(),
		Locations: s.Locations(),
	}
}
