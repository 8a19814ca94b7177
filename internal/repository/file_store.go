package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"commerce-agent/internal/domain"
)

// Fixture is the on-disk catalog format read by FileStore.
type Fixture struct {
	Products []domain.Product `yaml:"products"`
	Orders   []domain.Order   `yaml:"orders"`
}

// DefaultTraceLimit is how many traces a FileStore keeps unless told
// otherwise.
const DefaultTraceLimit = 256

// FileStore serves a YAML fixture from memory. Only the most recent traces
// are kept, newest last.
type FileStore struct {
	fixture Fixture
	orders  map[string]domain.Order

	mu         sync.Mutex
	traces     []domain.Trace
	traceLimit int
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithTraceLimit caps the number of traces kept in memory. n <= 0 keeps
// none.
func WithTraceLimit(n int) FileOption {
	return func(s *FileStore) { s.traceLimit = max(n, 0) }
}

// LoadFile reads a YAML fixture from path.
func LoadFile(path string, opts ...FileOption) (*FileStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("repository: open fixture: %w", err)
	}
	defer func() { _ = f.Close() }()
	return NewFileStore(f, opts...)
}

func NewFileStore(r io.Reader, opts ...FileOption) (*FileStore, error) {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("repository: decode fixture: %w", err)
	}
	s := &FileStore{fixture: fx, orders: make(map[string]domain.Order, len(fx.Orders)), traceLimit: DefaultTraceLimit}
	for _, opt := range opts {
		opt(s)
	}
	for _, o := range fx.Orders {
		if o.OrderID == "" {
			return nil, errors.New("repository: fixture order without order_id")
		}
		if _, dup := s.orders[o.OrderID]; dup {
			return nil, fmt.Errorf("repository: duplicate order %s in fixture", o.OrderID)
		}
		o.CreatedAt = o.CreatedAt.UTC()
		s.orders[o.OrderID] = o
	}
	return s, nil
}

// Fixture returns the loaded products and orders.
func (s *FileStore) Fixture() Fixture {
	return s.fixture
}

func (s *FileStore) ListProducts(_ context.Context) ([]domain.Product, error) {
	out := make([]domain.Product, len(s.fixture.Products))
	copy(out, s.fixture.Products)
	return out, nil
}

func (s *FileStore) FindOrder(_ context.Context, orderID string) (domain.Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *FileStore) SaveTrace(_ context.Context, trace domain.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.traceLimit == 0 {
		return nil
	}
	if len(s.traces) == s.traceLimit {
		// Shift in place so the backing array never grows past the limit.
		copy(s.traces, s.traces[1:])
		s.traces = s.traces[:len(s.traces)-1]
	}
	s.traces = append(s.traces, trace)
	return nil
}

// Traces returns the traces saved so far.
func (s *FileStore) Traces() []domain.Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Trace, len(s.traces))
	copy(out, s.traces)
	return out
}
