package company_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmapi/activity"
	"crmapi/company"
	"crmapi/contact"
	"crmapi/deal"
	"crmapi/optional"
	"crmapi/store"
	"crmapi/test/infra"
)

func strPtr(s string) *string { return &s }

func TestCompanyStore_CreateConflictAndList(t *testing.T) {
	pool := infra.OpenTestPool(t)
	svc := company.NewService(pool, nil)
	ctx := context.Background()

	acme, err := svc.Create(ctx, company.CreateParams{Name: "Acme", City: strPtr("Madrid"), Industry: strPtr("Retail")})
	require.NoError(t, err)
	assert.NotZero(t, acme.ID)
	assert.False(t, acme.CreatedAt.IsZero())

	_, err = svc.Create(ctx, company.CreateParams{Name: "Acme"})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = svc.Create(ctx, company.CreateParams{Name: "Globex", City: strPtr("Berlin")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, company.CreateParams{Name: "Acme Labs", City: strPtr("madrid")})
	require.NoError(t, err)

	list, total, err := svc.List(ctx, company.Filter{Search: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, "Acme Labs", list[0].Name, "newest first")

	list, total, err = svc.List(ctx, company.Filter{Search: "acme", City: "MADRID", Industry: "ret"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, acme.ID, list[0].ID)

	list, total, err = svc.List(ctx, company.Filter{Search: "nothing-matches"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	list, total, err = svc.List(ctx, company.Filter{Page: store.Page{Offset: 1, Limit: 1}})
	require.NoError(t, err)
	assert.Equal(t, 3, total, "total ignores the window")
	assert.Len(t, list, 1)

	// LIKE metacharacters match literally.
	list, _, err = svc.List(ctx, company.Filter{Search: "%"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCompanyStore_UpdateSemantics(t *testing.T) {
	pool := infra.OpenTestPool(t)
	svc := company.NewService(pool, nil)
	ctx := context.Background()

	c, err := svc.Create(ctx, company.CreateParams{Name: "Initech", City: strPtr("Austin")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, company.CreateParams{Name: "Taken"})
	require.NoError(t, err)

	same, err := svc.Update(ctx, c.ID, company.UpdateParams{})
	require.NoError(t, err)
	assert.True(t, same.UpdatedAt.Equal(c.UpdatedAt), "empty patch must not bump updated_at")

	time.Sleep(10 * time.Millisecond)
	updated, err := svc.Update(ctx, c.ID, company.UpdateParams{City: optional.Null[string](), Website: optional.Of("initech.example")})
	require.NoError(t, err)
	assert.Nil(t, updated.City)
	require.NotNil(t, updated.Website)
	assert.Equal(t, "initech.example", *updated.Website)
	assert.Equal(t, "Initech", updated.Name)
	assert.True(t, updated.UpdatedAt.After(c.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(c.CreatedAt))

	_, err = svc.Update(ctx, c.ID, company.UpdateParams{Name: optional.Of("Taken")})
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = svc.Update(ctx, c.ID, company.UpdateParams{Name: optional.Null[string]()})
	require.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = svc.Update(ctx, 999999, company.UpdateParams{City: optional.Of("x")})
	require.ErrorIs(t, err, company.ErrNotFound)

	_, err = svc.Update(ctx, c.ID, company.UpdateParams{OwnerUserID: optional.Of(int64(424242))})
	require.ErrorIs(t, err, store.ErrInvalidInput, "unknown owner is a foreign key violation")
}

func TestCompanyStore_DetailAndDelete(t *testing.T) {
	pool := infra.OpenTestPool(t)
	ctx := context.Background()
	companies := company.NewService(pool, nil)
	contacts := contact.NewService(pool, nil)
	deals := deal.NewService(pool, nil)
	activities := activity.NewService(pool, nil)

	acme, err := companies.Create(ctx, company.CreateParams{Name: "Acme"})
	require.NoError(t, err)
	other, err := companies.Create(ctx, company.CreateParams{Name: "Other"})
	require.NoError(t, err)

	ana, err := contacts.Create(ctx, contact.CreateParams{FirstName: "Ana", LastName: "Diaz", Position: strPtr("CTO"), CompanyID: &acme.ID})
	require.NoError(t, err)
	ben, err := contacts.Create(ctx, contact.CreateParams{FirstName: "Ben", LastName: "Ortiz", CompanyID: &acme.ID})
	require.NoError(t, err)
	_, err = contacts.Create(ctx, contact.CreateParams{FirstName: "Elsa", LastName: "Where", CompanyID: &other.ID})
	require.NoError(t, err)
	big, err := deals.Create(ctx, deal.CreateParams{Title: "Big", Amount: 1000, CompanyID: acme.ID, ContactID: &ana.ID})
	require.NoError(t, err)
	foreign, err := deals.Create(ctx, deal.CreateParams{Title: "Foreign", CompanyID: other.ID})
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	// Linked through both the deal and the contact: must appear once.
	latest := base.Add(100 * time.Hour)
	both, err := activities.Create(ctx, activity.CreateParams{Type: activity.TypeCall, Subject: "both", DueDate: &latest, DealID: &big.ID, ContactID: &ana.ID})
	require.NoError(t, err)
	for i := 1; i <= 22; i++ {
		due := base.Add(time.Duration(i) * time.Hour)
		_, err := activities.Create(ctx, activity.CreateParams{Type: activity.TypeTask, Subject: fmt.Sprintf("t%d", i), DueDate: &due, ContactID: &ana.ID})
		require.NoError(t, err)
	}
	_, err = activities.Create(ctx, activity.CreateParams{Type: activity.TypeEmail, Subject: "elsewhere", DealID: &foreign.ID})
	require.NoError(t, err)

	detail, err := companies.Detail(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", detail.Name)
	require.Len(t, detail.Contacts, 2)
	assert.Equal(t, ana.ID, detail.Contacts[0].ID)
	assert.Equal(t, "CTO", *detail.Contacts[0].Position)
	assert.Equal(t, ben.ID, detail.Contacts[1].ID)
	assert.Nil(t, detail.Contacts[1].Position)
	require.Len(t, detail.Deals, 1)
	assert.Equal(t, big.ID, detail.Deals[0].ID)
	require.Len(t, detail.Activities, 20)
	assert.Equal(t, both.ID, detail.Activities[0].ID, "latest due first")
	assert.Equal(t, "t22", detail.Activities[1].Subject)
	for i := 1; i < len(detail.Activities); i++ {
		assert.False(t, detail.Activities[i].DueDate.After(*detail.Activities[i-1].DueDate))
	}
	seen := map[int64]bool{}
	for _, a := range detail.Activities {
		assert.False(t, seen[a.ID], "duplicate activity %d", a.ID)
		seen[a.ID] = true
		assert.NotEqual(t, "elsewhere", a.Subject)
	}

	_, err = companies.Detail(ctx, 999999)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, companies.Delete(ctx, acme.ID))
	require.ErrorIs(t, companies.Delete(ctx, acme.ID), store.ErrNotFound)

	orphan, err := deals.Get(ctx, big.ID)
	require.NoError(t, err, "deals survive their company")
	assert.Equal(t, acme.ID, orphan.CompanyID)
	assert.Nil(t, orphan.CompanyName)

	still, err := contacts.Get(ctx, ana.ID)
	require.NoError(t, err)
	assert.Nil(t, still.CompanyID, "contact company link is cleared")
	still, err = contacts.Get(ctx, ben.ID)
	require.NoError(t, err)
	assert.Nil(t, still.CompanyID)
}
