package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/charge-mapping/internal/corpus"
)

// keyColumn returns the charges table column holding the join key.
func keyColumn(key string) string {
	if key == corpus.KeyInvoiceNumber {
		return "invoice_number"
	}
	return "invoice_md5"
}

// chargesQuery builds the lookup for one key column. Rows come back in ledger order within a key.
func chargesQuery(projectID, dataset, table, key string) string {
	col := keyColumn(key)
	where := col + " IN UNNEST(@keys)"
	if key == corpus.KeyMD5 {
		where = "LOWER(TRIM(" + col + ")) IN UNNEST(@keys)"
	}
	return fmt.Sprintf(`
		SELECT
			invoice_md5,
			invoice_number,
			line_no,
			charge_description,
			equipment_type,
			material,
			service_id,
			service_type,
			vendor_name,
			cost,
			price
		FROM `+"`%s.%s.%s`"+`
		WHERE %s
		ORDER BY %s, line_no
	`, projectID, dataset, table, where, col)
}

// QueryChargesByKeysWithClient reads the billing charges whose key column holds one of values.
func QueryChargesByKeysWithClient(ctx context.Context, client *bigquery.Client, dataset, table, key string, values []string) ([]corpus.BillingCharge, error) {
	if len(values) == 0 {
		return nil, nil
	}

	q := client.Query(chargesQuery(client.Project(), dataset, table, key))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "keys", Value: values},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryChargesByKeysWithClient: reading query: %w", err)
	}

	var charges []corpus.BillingCharge
	for {
		var row ChargeRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryChargesByKeysWithClient: iterating: %w", err)
		}
		charges = append(charges, row.BillingCharge(len(charges), key))
	}

	return charges, nil
}
