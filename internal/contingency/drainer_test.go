package contingency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"facturasv/internal/mh"
	"facturasv/internal/platform/logger"
	"facturasv/pkg/domain"
)

// fakeReplayer replays documents per a scripted outcome, recording order.
type fakeReplayer struct {
	outcomes map[domain.GenerationCode]mh.Outcome
	replayed []domain.GenerationCode
}

func (f *fakeReplayer) Replay(_ context.Context, id domain.GenerationCode) (mh.Outcome, error) {
	f.replayed = append(f.replayed, id)
	if out, ok := f.outcomes[id]; ok {
		return out, nil
	}
	return mh.Outcome{Kind: mh.OutcomeAccepted, Sello: "SELLO-" + string(id)[:8]}, nil
}

type fakeAuthority struct {
	reachable     bool
	notifyOutcome mh.Outcome
	notifyCalls   int
	notifiedJWS   []string
}

func (f *fakeAuthority) Probe(context.Context) bool { return f.reachable }

func (f *fakeAuthority) NotifyContingency(_ context.Context, jws string) mh.Outcome {
	f.notifyCalls++
	f.notifiedJWS = append(f.notifiedJWS, jws)
	return f.notifyOutcome
}

type fakeSigner struct{}

func (fakeSigner) SignEvent(any) (string, error) { return "ey.signed.event", nil }

type DrainerSuite struct {
	suite.Suite
	ctx       context.Context
	queue     *InMemoryQueue
	replayer  *fakeReplayer
	authority *fakeAuthority
	drainer   *Drainer
}

func TestDrainerSuite(t *testing.T) {
	suite.Run(t, new(DrainerSuite))
}

func (s *DrainerSuite) SetupTest() {
	s.ctx = context.Background()
	s.queue = NewInMemoryQueue()
	s.replayer = &fakeReplayer{outcomes: make(map[domain.GenerationCode]mh.Outcome)}
	s.authority = &fakeAuthority{
		reachable:     true,
		notifyOutcome: mh.Outcome{Kind: mh.OutcomeAccepted, Sello: "SELLO-EVENTO"},
	}
	s.drainer = NewDrainer(s.queue, s.replayer, s.authority, fakeSigner{},
		domain.EnvTest, time.Millisecond, logger.New(), testMetrics)
}

func (s *DrainerSuite) enqueue(nit string) Entry {
	e := entry(nit)
	s.Require().NoError(s.drainer.Enqueue(s.ctx, e))
	return e
}

func (s *DrainerSuite) TestReplaysInEnqueueOrder() {
	nit := "0614-000001-001-1"
	d1 := s.enqueue(nit)
	d2 := s.enqueue(nit)
	d3 := s.enqueue(nit)

	s.drainer.cycle(s.ctx)

	s.Equal([]domain.GenerationCode{d1.DocumentID, d2.DocumentID, d3.DocumentID}, s.replayer.replayed)
	depth, err := s.queue.Depth(s.ctx)
	s.Require().NoError(err)
	s.Zero(depth)
	s.Empty(s.drainer.Windows(), "window closes once its queue drains")
}

func (s *DrainerSuite) TestWindowReportedBeforeReplay() {
	s.enqueue("0614-000001-001-1")

	s.drainer.cycle(s.ctx)

	s.Equal(1, s.authority.notifyCalls)
	s.Len(s.replayer.replayed, 1)
}

func (s *DrainerSuite) TestReportSentOncePerWindow() {
	nit := "0614-000001-001-1"
	s.enqueue(nit)
	d2 := s.enqueue(nit)
	s.replayer.outcomes[d2.DocumentID] = mh.Outcome{Kind: mh.OutcomeTransient}

	s.drainer.cycle(s.ctx) // d1 drains, d2 stays
	s.replayer.outcomes[d2.DocumentID] = mh.Outcome{Kind: mh.OutcomeAccepted}
	s.drainer.cycle(s.ctx)

	s.Equal(1, s.authority.notifyCalls)
	depth, err := s.queue.Depth(s.ctx)
	s.Require().NoError(err)
	s.Zero(depth)
}

func (s *DrainerSuite) TestHaltsCycleOnUnreachable() {
	nit := "0614-000001-001-1"
	d1 := s.enqueue(nit)
	d2 := s.enqueue(nit)
	d3 := s.enqueue(nit)
	other := s.enqueue("0614-000002-001-1")
	s.replayer.outcomes[d2.DocumentID] = mh.Outcome{
		Kind: mh.OutcomeUnreachable, Cause: mh.CauseConnectionFailed,
	}

	s.drainer.cycle(s.ctx)

	s.Equal([]domain.GenerationCode{d1.DocumentID, d2.DocumentID}, s.replayer.replayed,
		"nothing after the unreachable replay runs, not even other taxpayers")
	depth, err := s.queue.Depth(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, depth, "d2, d3 and the other taxpayer's entry remain")
	_ = d3
	_ = other
}

func (s *DrainerSuite) TestNothingDrainsWhileUnreachable() {
	s.enqueue("0614-000001-001-1")
	s.authority.reachable = false

	s.drainer.cycle(s.ctx)

	s.Empty(s.replayer.replayed)
	s.Zero(s.authority.notifyCalls)
}

func (s *DrainerSuite) TestRejectedReportSkipsTaxpayer() {
	s.enqueue("0614-000001-001-1")
	keep := s.enqueue("0614-000002-001-1")
	s.authority.notifyOutcome = mh.Outcome{Kind: mh.OutcomeRejected, ReasonCode: "05"}

	s.drainer.cycle(s.ctx)
	s.Empty(s.replayer.replayed, "no replay without an accepted window report")

	s.authority.notifyOutcome = mh.Outcome{Kind: mh.OutcomeAccepted}
	s.drainer.cycle(s.ctx)
	s.Len(s.replayer.replayed, 2)
	_ = keep
}

func (s *DrainerSuite) TestRejectedDocumentIsAckedNotRetried() {
	nit := "0614-000001-001-1"
	bad := s.enqueue(nit)
	good := s.enqueue(nit)
	s.replayer.outcomes[bad.DocumentID] = mh.Outcome{Kind: mh.OutcomeRejected, ReasonCode: "92"}

	s.drainer.cycle(s.ctx)

	s.Equal([]domain.GenerationCode{bad.DocumentID, good.DocumentID}, s.replayer.replayed)
	depth, err := s.queue.Depth(s.ctx)
	s.Require().NoError(err)
	s.Zero(depth)
}

func (s *DrainerSuite) TestWindowRebuiltFromPersistedQueue() {
	nit := "0614-000001-001-1"
	d1 := entry(nit)
	d2 := entry(nit)
	s.Require().NoError(s.queue.Enqueue(s.ctx, d1))
	s.Require().NoError(s.queue.Enqueue(s.ctx, d2))

	// Fresh drainer over a pre-populated queue, as after a restart.
	restarted := NewDrainer(s.queue, s.replayer, s.authority, fakeSigner{},
		domain.EnvTest, time.Millisecond, logger.New(), testMetrics)
	restarted.cycle(s.ctx)

	s.Equal(1, s.authority.notifyCalls, "rebuilt window still gets reported")
	s.Equal([]domain.GenerationCode{d1.DocumentID, d2.DocumentID}, s.replayer.replayed)
	depth, err := s.queue.Depth(s.ctx)
	s.Require().NoError(err)
	s.Zero(depth)
}

func (s *DrainerSuite) TestNewFailureAfterReportOpensNewWindow() {
	nit := "0614-000001-001-1"
	first := s.enqueue(nit)
	s.replayer.outcomes[first.DocumentID] = mh.Outcome{Kind: mh.OutcomeTransient}
	s.drainer.cycle(s.ctx) // report accepted, replay stuck transient

	second := s.enqueue(nit)
	windows := s.drainer.Windows()
	s.Require().Len(windows, 1)
	s.Equal([]domain.GenerationCode{second.DocumentID}, windows[0].Documents)
}
