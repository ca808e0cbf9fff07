package oracles

import (
	"context"
	"fmt"

	"crmapi/store"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks. Each query must return no rows.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_company_name",
			SQL:  `SELECT name, COUNT(*) FROM companies GROUP BY name HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_unique_contact_email",
			SQL: `SELECT email, COUNT(*) FROM contacts
                  WHERE email IS NOT NULL
                  GROUP BY email HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_blank_email_is_null",
			SQL:  `SELECT id FROM contacts WHERE email IS NOT NULL AND btrim(email) = ''`,
		},
		{
			Name: "O4_updated_not_before_created",
			SQL: `SELECT 'company' AS kind, id FROM companies WHERE updated_at < created_at
                  UNION ALL
                  SELECT 'contact', id FROM contacts WHERE updated_at < created_at
                  UNION ALL
                  SELECT 'deal', id FROM deals WHERE updated_at < created_at`,
		},
		{
			Name: "O5_deal_currency_code",
			SQL:  `SELECT id, currency FROM deals WHERE currency !~ '^[A-Z]{3}$'`,
		},
		{
			Name: "O6_dangling_references",
			SQL: `SELECT 'activity.deal' AS ref, a.id FROM activities a
                  WHERE a.deal_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM deals d WHERE d.id = a.deal_id)
                  UNION ALL
                  SELECT 'activity.contact', a.id FROM activities a
                  WHERE a.contact_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM contacts c WHERE c.id = a.contact_id)
                  UNION ALL
                  SELECT 'deal.contact', d.id FROM deals d
                  WHERE d.contact_id IS NOT NULL AND NOT EXISTS (SELECT 1 FROM contacts c WHERE c.id = d.contact_id)`,
		},
		{
			Name: "O7_pipeline_totals_consistent",
			SQL: `WITH by_stage AS (SELECT stage, SUM(amount) AS total FROM deals GROUP BY stage)
                  SELECT (SELECT SUM(total) FROM by_stage) AS staged, (SELECT SUM(amount) FROM deals) AS overall
                  WHERE (SELECT SUM(total) FROM by_stage) IS DISTINCT FROM (SELECT SUM(amount) FROM deals)`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, db store.Querier) (string, string, error) {
	for _, o := range All() {
		rows, err := db.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
