package analytics

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/grapic/facematch/internal/facestore"
)

// BandShare is one distribution band with its share of all matches.
type BandShare struct {
	Label      string
	Low        float64
	Count      int64
	Percentage float64 // of total matches, rounded to 2 decimals
}

// EventAggregate is one event's precomputed analytics. Aggregates are
// immutable snapshots: readers may see data as stale as the last refresh,
// never a partially updated view.
type EventAggregate struct {
	EventID      uuid.UUID
	Distribution []BandShare
	Stats        facestore.SimilarityStats
	FalsePos     facestore.FalsePositiveEstimate
	LastMatchAt  *time.Time
	RefreshedAt  time.Time
}

func buildAggregate(eventID uuid.UUID, bands []facestore.SimilarityBand, stats *facestore.SimilarityStats, fp *facestore.FalsePositiveEstimate, last *time.Time, now time.Time) EventAggregate {
	agg := EventAggregate{
		EventID:     eventID,
		LastMatchAt: last,
		RefreshedAt: now,
	}
	if stats != nil {
		agg.Stats = *stats
	}
	if fp != nil {
		agg.FalsePos = *fp
	}

	var total int64
	for _, b := range bands {
		total += b.Count
	}
	agg.Distribution = make([]BandShare, 0, len(bands))
	for _, b := range bands {
		share := BandShare{Label: b.Label, Low: b.Low, Count: b.Count}
		if total > 0 {
			share.Percentage = math.Round(float64(b.Count)/float64(total)*10000) / 100
		}
		agg.Distribution = append(agg.Distribution, share)
	}
	return agg
}
