package clean

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
)

// Videos projects raw catalog video resources onto the silver video schema.
// Items that are not objects, carry an error marker or lack an id are dropped.
func Videos(doc models.BronzeVideos, date partition.Date) models.SilverVideos {
	items := make([]models.CleanVideo, 0, len(doc.Items))
	for _, raw := range doc.Items {
		var v models.RawVideo
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if v.HasError() || v.ID == "" {
			continue
		}

		clean := models.CleanVideo{
			VideoID:      v.ID,
			ViewCount:    toInt(v.Statistics["viewCount"]),
			LikeCount:    toInt(v.Statistics["likeCount"]),
			CommentCount: toInt(v.Statistics["commentCount"]),
		}
		if v.Snippet != nil {
			clean.Title = v.Snippet.Title
			clean.PublishedAt = v.Snippet.PublishedAt
			clean.ChannelTitle = v.Snippet.ChannelTitle
		}
		if v.ContentDetails != nil {
			clean.Duration = v.ContentDetails.Duration
		}

		items = append(items, clean)
	}

	return models.SilverVideos{
		IngestDate: date,
		Rows:       len(items),
		Items:      items,
	}
}

// toInt coerces a decoded JSON value to an integer, or nil when it is not one.
// The catalog sends counts as decimal strings. float64(math.MaxInt64) rounds
// up to 2^63, hence >= on the upper bound.
func toInt(v any) *int64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n >= math.MaxInt64 || n < math.MinInt64 {
			return nil
		}
		i := int64(n)
		return &i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return nil
		}
		return &i
	case int64:
		return &n
	case int:
		i := int64(n)
		return &i
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil
		}
		return &i
	}
	return nil
}
