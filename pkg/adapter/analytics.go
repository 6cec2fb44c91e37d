package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// TurnRow is one per-turn metrics record exported to BigQuery.
type TurnRow struct {
	SessionID      string    `bigquery:"session_id"`
	Turn           int       `bigquery:"turn"`
	Completeness   float64   `bigquery:"completeness"`
	FiredMoments   []string  `bigquery:"fired_moments"`
	RejectedFields int       `bigquery:"rejected_fields"`
	Timestamp      time.Time `bigquery:"timestamp"`
}

// SessionStat is an aggregated per-session view read back from BigQuery.
type SessionStat struct {
	SessionID    string
	Turns        int64
	Completeness float64
}

// Analytics exports turn metrics. Export is best-effort: a failed insert is
// logged by the caller and never fails a turn.
type Analytics interface {
	// InsertTurn appends one turn metrics row
	InsertTurn(ctx context.Context, row *TurnRow) error

	// SessionStats aggregates turn counts and latest completeness per session
	SessionStats(ctx context.Context) ([]*SessionStat, error)
}

type analyticsClient struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewAnalytics creates a BigQuery-backed analytics exporter.
func NewAnalytics(ctx context.Context, projectID, dataset, table string) (Analytics, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	return &analyticsClient{
		client:  client,
		dataset: dataset,
		table:   table,
	}, nil
}

func (a *analyticsClient) InsertTurn(ctx context.Context, row *TurnRow) error {
	inserter := a.client.Dataset(a.dataset).Table(a.table).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return goerr.Wrap(err, "failed to insert turn row",
			goerr.V("session_id", row.SessionID), goerr.V("turn", row.Turn))
	}
	return nil
}

func (a *analyticsClient) SessionStats(ctx context.Context) ([]*SessionStat, error) {
	q := a.client.Query(`
		SELECT session_id, COUNT(*) AS turns, MAX(completeness) AS completeness
		FROM ` + "`" + a.dataset + "." + a.table + "`" + `
		GROUP BY session_id
		ORDER BY MAX(timestamp) DESC`)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query session stats")
	}

	var stats []*SessionStat
	for {
		var row struct {
			SessionID    string  `bigquery:"session_id"`
			Turns        int64   `bigquery:"turns"`
			Completeness float64 `bigquery:"completeness"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate session stats")
		}
		stats = append(stats, &SessionStat{
			SessionID:    row.SessionID,
			Turns:        row.Turns,
			Completeness: row.Completeness,
		})
	}

	return stats, nil
}
