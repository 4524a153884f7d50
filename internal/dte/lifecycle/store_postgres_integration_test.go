//go:build integration

package lifecycle_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"facturasv/internal/dte/lifecycle"
	"facturasv/internal/dte/models"
	"facturasv/pkg/domain"
	"facturasv/pkg/platform/sentinel"
	"facturasv/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *lifecycle.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(s.postgres.Exec(context.Background(), lifecycle.Schema))
	s.store = lifecycle.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "dte_lifecycle"))
}

func newRecord() *models.LifecycleRecord {
	return &models.LifecycleRecord{
		DocumentID:     domain.NewGenerationCode(),
		TaxpayerNIT:    "0614-290292-102-3",
		Type:           domain.TypeCCF,
		State:          models.StateCreated,
		StateEnteredAt: time.Now().UTC(),
	}
}

func (s *PostgresStoreSuite) TestCreateGetRoundTrip() {
	ctx := context.Background()
	rec := newRecord()
	s.Require().NoError(s.store.Create(ctx, rec))

	got, err := s.store.Get(ctx, rec.DocumentID)
	s.Require().NoError(err)
	s.Equal(rec.DocumentID, got.DocumentID)
	s.Equal(rec.TaxpayerNIT, got.TaxpayerNIT)
	s.Equal(rec.Type, got.Type)
	s.Equal(models.StateCreated, got.State)

	s.ErrorIs(s.store.Create(ctx, rec), sentinel.ErrConflict)

	_, err = s.store.Get(ctx, domain.NewGenerationCode())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCompareAndSwap() {
	ctx := context.Background()
	rec := newRecord()
	s.Require().NoError(s.store.Create(ctx, rec))

	updated, err := s.store.CompareAndSwap(ctx, rec.DocumentID,
		models.StateCreated, models.StateValidated, time.Now().UTC(), models.TransitionMeta{})
	s.Require().NoError(err)
	s.Equal(models.StateValidated, updated.State)

	_, err = s.store.CompareAndSwap(ctx, rec.DocumentID,
		models.StateCreated, models.StateValidated, time.Now().UTC(), models.TransitionMeta{})
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.CompareAndSwap(ctx, domain.NewGenerationCode(),
		models.StateCreated, models.StateValidated, time.Now().UTC(), models.TransitionMeta{})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestMetaSemantics() {
	ctx := context.Background()
	rec := newRecord()
	s.Require().NoError(s.store.Create(ctx, rec))

	updated, err := s.store.CompareAndSwap(ctx, rec.DocumentID,
		models.StateCreated, models.StateValidated, time.Now().UTC(),
		models.TransitionMeta{AttemptDelta: 1, LastError: "timeout"})
	s.Require().NoError(err)
	s.Equal(1, updated.AttemptCount)
	s.Equal("timeout", updated.LastError)
	s.Empty(updated.AuthorityReference)

	updated, err = s.store.CompareAndSwap(ctx, rec.DocumentID,
		models.StateValidated, models.StateSigned, time.Now().UTC(),
		models.TransitionMeta{AuthorityReference: "SELLO-1"})
	s.Require().NoError(err)
	s.Equal("SELLO-1", updated.AuthorityReference)
	s.Empty(updated.LastError)
	s.Equal(1, updated.AttemptCount)
}

// Exactly one of many concurrent CAS writers may win: the UPDATE's state
// predicate is the pipeline's single-owner enforcement.
func (s *PostgresStoreSuite) TestConcurrentCompareAndSwap() {
	ctx := context.Background()
	rec := newRecord()
	s.Require().NoError(s.store.Create(ctx, rec))

	const writers = 20
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.CompareAndSwap(ctx, rec.DocumentID,
				models.StateCreated, models.StateValidated, time.Now().UTC(), models.TransitionMeta{})
			if err == nil {
				wins.Add(1)
			} else {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(writers-1), conflicts.Load())
}
