package models

import (
	"time"

	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
)

// Sentiment labels accepted from the classification service.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"

	// SentimentUnknown buckets items whose sentiment is absent in the KPIs.
	SentimentUnknown = "unknown"
)

// CommentClassification is what the classification service returns for a comment.
// Field names never collide with CleanComment so the merge stays additive.
type CommentClassification struct {
	Sentiment *string  `json:"sentiment"`
	Score     *float64 `json:"sentiment_score"`
	Emotion   *string  `json:"emotion"`
	Summary   *string  `json:"summary"`
}

// VideoClassification is what the classification service returns for a video title.
// Summary is only set when the response could not be parsed.
type VideoClassification struct {
	Sentiment *string  `json:"sentiment"`
	Emotions  []string `json:"emotions"`
	Topics    []string `json:"topics"`
	Summary   *string  `json:"summary,omitempty"`
}

type EnrichedComment struct {
	CleanComment
	CommentClassification
}

type EnrichedVideo struct {
	CleanVideo
	VideoClassification
}

type GoldComments struct {
	IngestDate partition.Date    `json:"ingest_date"`
	Rows       int               `json:"rows"`
	Items      []EnrichedComment `json:"items"`
}

type GoldVideos struct {
	IngestDate partition.Date  `json:"ingest_date"`
	Rows       int             `json:"rows"`
	Items      []EnrichedVideo `json:"items"`
}

// KPIs is the final aggregate for a partition.
type KPIs struct {
	IngestDate             partition.Date `json:"ingest_date"`
	TotalVideos            int            `json:"total_videos"`
	TotalComments          int            `json:"total_comments"`
	VideoSentimentCounts   map[string]int `json:"video_sentiment_counts"`
	CommentSentimentCounts map[string]int `json:"comment_sentiment_counts"`
	GeneratedAt            time.Time      `json:"generated_at"`
}
