package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/charge-mapping/internal/logger"
	"github.com/dvloznov/charge-mapping/internal/matcher"
)

// insertBatchSize bounds the rows sent in one streaming insert request.
const insertBatchSize = 500

// InsertJoinedRecordsWithClient streams every record of res into dataset.table.
func InsertJoinedRecordsWithClient(ctx context.Context, client *bigquery.Client, dataset, table string, res *matcher.Result) error {
	rows := JoinedRecordRows(res, time.Now().UTC())
	if len(rows) == 0 {
		return nil
	}

	inserter := client.Dataset(dataset).Table(table).Inserter()
	for _, batch := range batches(rows, insertBatchSize) {
		if err := inserter.Put(ctx, batch); err != nil {
			return fmt.Errorf("InsertJoinedRecordsWithClient: inserting rows: %w", err)
		}
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("run_id", res.RunID).
		Str("table", dataset+"."+table).
		Int("rows", len(rows)).
		Msg("Published joined records")
	return nil
}

// JoinedRecordRows converts every record of res, stamping each with created.
func JoinedRecordRows(res *matcher.Result, created time.Time) []*JoinedRecordRow {
	rows := make([]*JoinedRecordRow, 0, len(res.Records))
	for _, rec := range res.Records {
		rows = append(rows, NewJoinedRecordRow(rec, created))
	}
	return rows
}

func batches[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
