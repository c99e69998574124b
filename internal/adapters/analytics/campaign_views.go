package analytics

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2"

	"ghsnapshot/internal/platform/store"
)

// HourlyDelta is one (hour, delta-from-previous-max) pair for a phrase.
type HourlyDelta struct {
	Hour  int
	Delta int
}

const campaignViewsQuery = `
SELECT phrase,
       arrayReverse(arrayFilter(x -> x.2 > 0,
           arrayMap((h,d)->(h,d), hours, arrayDifference(views_array)))) AS views_by_hour
FROM (SELECT phrase, groupArray(h) AS hours, groupArray(max_v) AS views_array
      FROM (SELECT phrase, toHour(dt) AS h, max(views) AS max_v
            FROM phrases_views
            WHERE campaign_id = {campaign_id:Int32} AND toDate(dt)=today()
            GROUP BY phrase, h ORDER BY h ASC)
      GROUP BY phrase)`

// CampaignViewsReader answers the hourly-views analytical query for a
// campaign (§6), outside the ingestion pipeline's write path.
type CampaignViewsReader struct {
	ch store.Clickhouse
}

// NewCampaignViewsReader builds a reader over an already-open store.Clickhouse.
func NewCampaignViewsReader(ch store.Clickhouse) *CampaignViewsReader {
	return &CampaignViewsReader{ch: ch}
}

// GetHourlyViews returns, per phrase, the sequence of (hour, delta-views)
// pairs for campaignID on the current day.
func (r *CampaignViewsReader) GetHourlyViews(ctx context.Context, campaignID int32) (map[string][]HourlyDelta, error) {
	rows, err := r.ch.Query(ctx, campaignViewsQuery, clickhouse.Named("campaign_id", campaignID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string][]HourlyDelta{}
	for rows.Next() {
		var phrase string
		var pairs [][2]int
		if err := rows.Scan(&phrase, &pairs); err != nil {
			return nil, err
		}
		deltas := make([]HourlyDelta, 0, len(pairs))
		for _, p := range pairs {
			deltas = append(deltas, HourlyDelta{Hour: p[0], Delta: p[1]})
		}
		result[phrase] = deltas
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
