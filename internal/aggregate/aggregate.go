// Package aggregate reduces the gold partitions of one day into KPIs.
package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
)

// Items is the ingress shape of a gold document. It accepts a bare list of
// objects, an object carrying an "items" list, or null.
type Items []map[string]any

func (it *Items) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*it = nil
		return nil
	}

	switch trimmed[0] {
	case '[':
		var list []map[string]any
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("decode item list: %w", err)
		}
		*it = list
	case '{':
		var doc struct {
			Items []map[string]any `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return fmt.Errorf("decode items document: %w", err)
		}
		*it = doc.Items
	default:
		return fmt.Errorf("unexpected gold document shape starting with %q", trimmed[0])
	}
	return nil
}

// Compute builds the KPIs for date. Every item lands in exactly one sentiment
// bucket, so each count map sums to its total.
func Compute(date partition.Date, videos, comments Items, now time.Time) models.KPIs {
	return models.KPIs{
		IngestDate:             date,
		TotalVideos:            len(videos),
		TotalComments:          len(comments),
		VideoSentimentCounts:   countSentiment(videos),
		CommentSentimentCounts: countSentiment(comments),
		GeneratedAt:            now.UTC(),
	}
}

func countSentiment(items Items) map[string]int {
	// A Caser carries state and must not be shared across goroutines.
	fold := cases.Fold()
	counts := make(map[string]int)
	for _, item := range items {
		counts[sentimentKey(fold, item["sentiment"])]++
	}
	return counts
}

func sentimentKey(fold cases.Caser, v any) string {
	s, ok := v.(string)
	if !ok {
		return models.SentimentUnknown
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return models.SentimentUnknown
	}
	return fold.String(s)
}
