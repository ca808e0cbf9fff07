// Package dashboard aggregates the sales pipeline and the activity agenda
// into one summary.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crmapi/activity"
	"crmapi/deal"
	"crmapi/store"
)

const DefaultDaysAhead = 7

// Summary is the dashboard read model.
type Summary struct {
	DealsByStage          []deal.StageTotal
	TotalPipelineValue    float64
	ExpectedPipelineValue float64
	UpcomingActivities    []activity.Upcoming
}

// Params scope the summary. A nil owner covers every owner; a nil DaysAhead
// means DefaultDaysAhead.
type Params struct {
	OwnerUserID *int64
	DaysAhead   *int
}

// Reader is the data access used by Service.
type Reader interface {
	StageTotals(ctx context.Context, tx pgx.Tx, ownerUserID *int64) ([]deal.StageTotal, error)
	Upcoming(ctx context.Context, tx pgx.Tx, from, to time.Time, ownerUserID *int64) ([]activity.Upcoming, error)
}

type PGReader struct{}

func (PGReader) StageTotals(ctx context.Context, tx pgx.Tx, ownerUserID *int64) ([]deal.StageTotal, error) {
	return deal.TotalsByStage(ctx, tx, ownerUserID)
}

func (PGReader) Upcoming(ctx context.Context, tx pgx.Tx, from, to time.Time, ownerUserID *int64) ([]activity.Upcoming, error) {
	return activity.ListUpcoming(ctx, tx, from, to, ownerUserID)
}

type Service struct {
	pool   store.TxBeginner
	reader Reader
	now    func() time.Time
}

func NewService(pool store.TxBeginner, reader Reader) *Service {
	if reader == nil {
		reader = PGReader{}
	}
	return &Service{pool: pool, reader: reader, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Summary reads stage totals and upcoming activities in one transaction so
// both halves see the same snapshot.
func (s *Service) Summary(ctx context.Context, params Params) (Summary, error) {
	days := DefaultDaysAhead
	if params.DaysAhead != nil {
		days = *params.DaysAhead
	}
	now := s.now().UTC()
	until := now.AddDate(0, 0, days)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("dashboard: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	totals, err := s.reader.StageTotals(ctx, tx, params.OwnerUserID)
	if err != nil {
		return Summary{}, err
	}
	upcoming, err := s.reader.Upcoming(ctx, tx, now, until, params.OwnerUserID)
	if err != nil {
		return Summary{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Summary{}, fmt.Errorf("dashboard: commit tx: %w", err)
	}

	summary := Summary{DealsByStage: totals, UpcomingActivities: upcoming}
	for _, t := range totals {
		summary.TotalPipelineValue += t.TotalAmount
		summary.ExpectedPipelineValue += t.TotalAmount * t.Stage.Probability()
	}
	return summary, nil
}
