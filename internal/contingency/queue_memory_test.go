package contingency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"facturasv/internal/platform/metrics"
	"facturasv/pkg/domain"
	"facturasv/pkg/platform/sentinel"
)

// testMetrics is shared by every test in the package; promauto registers
// globally and a second metrics.New would panic on duplicate collectors.
var testMetrics = metrics.New()

func entry(nit string) Entry {
	return Entry{
		DocumentID:  domain.NewGenerationCode(),
		TaxpayerNIT: nit,
		Type:        domain.TypeFactura,
		Reason:      "connection_failed",
		EnqueuedAt:  time.Now(),
	}
}

type InMemoryQueueSuite struct {
	suite.Suite
	queue *InMemoryQueue
	ctx   context.Context
}

func TestInMemoryQueueSuite(t *testing.T) {
	suite.Run(t, new(InMemoryQueueSuite))
}

func (s *InMemoryQueueSuite) SetupTest() {
	s.queue = NewInMemoryQueue()
	s.ctx = context.Background()
}

func (s *InMemoryQueueSuite) TestFIFOPerTaxpayer() {
	first := entry("0614-000001-001-1")
	second := entry("0614-000001-001-1")
	third := entry("0614-000001-001-1")
	for _, e := range []Entry{first, second, third} {
		s.Require().NoError(s.queue.Enqueue(s.ctx, e))
	}

	for _, want := range []Entry{first, second, third} {
		got, err := s.queue.Peek(s.ctx, want.TaxpayerNIT)
		s.Require().NoError(err)
		s.Equal(want.DocumentID, got.DocumentID)
		s.Require().NoError(s.queue.Ack(s.ctx, want.TaxpayerNIT))
	}

	_, err := s.queue.Peek(s.ctx, first.TaxpayerNIT)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryQueueSuite) TestTaxpayersInFirstEnqueueOrder() {
	a := entry("0614-000001-001-1")
	b := entry("0614-000002-001-1")
	s.Require().NoError(s.queue.Enqueue(s.ctx, a))
	s.Require().NoError(s.queue.Enqueue(s.ctx, b))
	s.Require().NoError(s.queue.Enqueue(s.ctx, entry(a.TaxpayerNIT)))

	nits, err := s.queue.Taxpayers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{a.TaxpayerNIT, b.TaxpayerNIT}, nits)
}

func (s *InMemoryQueueSuite) TestAckRemovesDrainedTaxpayer() {
	a := entry("0614-000001-001-1")
	b := entry("0614-000002-001-1")
	s.Require().NoError(s.queue.Enqueue(s.ctx, a))
	s.Require().NoError(s.queue.Enqueue(s.ctx, b))

	s.Require().NoError(s.queue.Ack(s.ctx, a.TaxpayerNIT))
	nits, err := s.queue.Taxpayers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{b.TaxpayerNIT}, nits)

	s.ErrorIs(s.queue.Ack(s.ctx, a.TaxpayerNIT), sentinel.ErrNotFound)
}

func (s *InMemoryQueueSuite) TestDepthAndEntries() {
	nit := "0614-000001-001-1"
	s.Require().NoError(s.queue.Enqueue(s.ctx, entry(nit)))
	s.Require().NoError(s.queue.Enqueue(s.ctx, entry(nit)))
	s.Require().NoError(s.queue.Enqueue(s.ctx, entry("0614-000002-001-1")))

	depth, err := s.queue.Depth(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, depth)

	entries, err := s.queue.Entries(s.ctx, nit)
	s.Require().NoError(err)
	s.Len(entries, 2)
}
