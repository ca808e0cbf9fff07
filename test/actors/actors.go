// Package actors drives the CRM services concurrently for the stress test.
// Every actor loops until stop is closed or ctx ends, tolerating the domain
// errors that contention and chaos produce and counting the rest.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"crmapi/activity"
	"crmapi/company"
	"crmapi/contact"
	"crmapi/dashboard"
	"crmapi/deal"
	"crmapi/optional"
	"crmapi/store"
)

// Stats counts actor outcomes.
type Stats struct {
	Ops        atomic.Int64
	Conflicts  atomic.Int64
	NotFound   atomic.Int64
	Invalid    atomic.Int64
	Unexpected atomic.Int64
	LastErr    atomic.Value
}

func (s *Stats) record(err error) {
	s.Ops.Add(1)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrConflict):
		s.Conflicts.Add(1)
	case errors.Is(err, store.ErrNotFound):
		s.NotFound.Add(1)
	case errors.Is(err, store.ErrInvalidInput):
		s.Invalid.Add(1)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		s.Unexpected.Add(1)
		s.LastErr.Store(err.Error())
	}
}

func (s *Stats) String() string {
	last, _ := s.LastErr.Load().(string)
	return fmt.Sprintf("ops=%d conflicts=%d not_found=%d invalid=%d unexpected=%d last=%q",
		s.Ops.Load(), s.Conflicts.Load(), s.NotFound.Load(), s.Invalid.Load(), s.Unexpected.Load(), last)
}

// Services bundles what the actors call.
type Services struct {
	Companies  *company.Service
	Contacts   *contact.Service
	Deals      *deal.Service
	Activities *activity.Service
	Dashboard  *dashboard.Service
}

// Seed holds ids created up front that actors pick from.
type Seed struct {
	CompanyIDs []int64
	ContactIDs []int64
	DealIDs    []int64
}

func pick(ids []int64) int64 {
	return ids[rand.Intn(len(ids))]
}

func loop(ctx context.Context, stop <-chan struct{}, pause func() time.Duration, step func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		default:
		}
		step()
		time.Sleep(pause())
	}
}

func jitter(base, spread int) func() time.Duration {
	return func() time.Duration {
		return time.Duration(base+rand.Intn(spread)) * time.Millisecond
	}
}

// CompanyCreator races other creators on a small set of names; all but one
// insert per name must fail with a conflict.
func CompanyCreator(ctx context.Context, svc Services, names []string, stats *Stats, stop <-chan struct{}) error {
	return loop(ctx, stop, jitter(10, 20), func() {
		_, err := svc.Companies.Create(ctx, company.CreateParams{Name: names[rand.Intn(len(names))]})
		stats.record(err)
	})
}

// ContactCreator writes contacts whose emails collide, are blank or absent.
func ContactCreator(ctx context.Context, svc Services, seed Seed, stats *Stats, stop <-chan struct{}) error {
	return loop(ctx, stop, jitter(10, 30), func() {
		var email *string
		switch rand.Intn(3) {
		case 0:
			e := fmt.Sprintf("shared-%d@example.com", rand.Intn(5))
			email = &e
		case 1:
			blank := "  "
			email = &blank
		}
		companyID := pick(seed.CompanyIDs)
		_, err := svc.Contacts.Create(ctx, contact.CreateParams{
			FirstName: "Stress",
			LastName:  fmt.Sprintf("Contact%d", rand.Intn(1000)),
			Email:     email,
			CompanyID: &companyID,
		})
		stats.record(err)
	})
}

// StageFlipper moves deals through random stages, occasionally invalid ones.
func StageFlipper(ctx context.Context, svc Services, seed Seed, stats *Stats, stop <-chan struct{}) error {
	stages := append(deal.Stages(), deal.Stage("closed"))
	return loop(ctx, stop, jitter(15, 25), func() {
		_, err := svc.Deals.SetStage(ctx, pick(seed.DealIDs), stages[rand.Intn(len(stages))])
		stats.record(err)
	})
}

// DealPatcher rewrites amounts and currencies, sometimes with an empty patch.
func DealPatcher(ctx context.Context, svc Services, seed Seed, stats *Stats, stop <-chan struct{}) error {
	currencies := []string{"eur", "USD", "gbp"}
	return loop(ctx, stop, jitter(15, 25), func() {
		var params deal.UpdateParams
		if rand.Intn(4) != 0 {
			params.Amount = optional.Of(float64(rand.Intn(100000)) / 100)
			params.Currency = optional.Of(currencies[rand.Intn(len(currencies))])
		}
		_, err := svc.Deals.Update(ctx, pick(seed.DealIDs), params)
		stats.record(err)
	})
}

// ActivityWriter schedules activities around now against seeded deals and contacts.
func ActivityWriter(ctx context.Context, svc Services, seed Seed, stats *Stats, stop <-chan struct{}) error {
	types := []activity.Type{activity.TypeCall, activity.TypeEmail, activity.TypeMeeting, activity.TypeTask}
	return loop(ctx, stop, jitter(10, 30), func() {
		due := time.Now().Add(time.Duration(rand.Intn(240)-24) * time.Hour)
		dealID := pick(seed.DealIDs)
		contactID := pick(seed.ContactIDs)
		_, err := svc.Activities.Create(ctx, activity.CreateParams{
			Type:      types[rand.Intn(len(types))],
			Subject:   "stress",
			DueDate:   &due,
			DealID:    &dealID,
			ContactID: &contactID,
		})
		stats.record(err)
	})
}

// ContactDeleter removes seeded contacts, exercising ON DELETE SET NULL.
func ContactDeleter(ctx context.Context, svc Services, seed Seed, stats *Stats, stop <-chan struct{}) error {
	return loop(ctx, stop, jitter(200, 200), func() {
		stats.record(svc.Contacts.Delete(ctx, pick(seed.ContactIDs)))
	})
}

// Reader hits the composed read models and checks the dashboard arithmetic.
func Reader(ctx context.Context, svc Services, seed Seed, stats *Stats, stop <-chan struct{}) error {
	return loop(ctx, stop, jitter(20, 30), func() {
		switch rand.Intn(3) {
		case 0:
			_, err := svc.Companies.Detail(ctx, pick(seed.CompanyIDs))
			stats.record(err)
		case 1:
			_, err := svc.Deals.Detail(ctx, pick(seed.DealIDs))
			stats.record(err)
		default:
			sum, err := svc.Dashboard.Summary(ctx, dashboard.Params{})
			if err == nil && sum.ExpectedPipelineValue > sum.TotalPipelineValue+1e-6 {
				err = fmt.Errorf("expected pipeline %.2f exceeds total %.2f", sum.ExpectedPipelineValue, sum.TotalPipelineValue)
			}
			stats.record(err)
		}
	})
}
