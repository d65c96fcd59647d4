package models

import (
	"encoding/json"
	"time"

	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
)

// BronzeVideos is the raw catalog dump for one partition. Items are stored
// exactly as the videos endpoint returned them.
type BronzeVideos struct {
	IngestDate partition.Date    `json:"ingest_date"`
	ChannelID  string            `json:"channelId"`
	PulledAt   time.Time         `json:"pulledAt"`
	VideoCount int               `json:"videoCount"`
	Items      []json.RawMessage `json:"items"`
}

// BronzeComments holds flattened top-level comment threads for one partition.
type BronzeComments struct {
	IngestDate   partition.Date `json:"ingest_date"`
	PulledAt     time.Time      `json:"pulledAt"`
	VideoCount   int            `json:"video_count"`
	CommentCount int            `json:"comment_count"`
	Items        []RawComment   `json:"items"`
}

// RawComment is one flattened comment thread. Likes is left untyped because
// bronze documents carry whatever upstream produced.
type RawComment struct {
	VideoID     string          `json:"videoId"`
	CommentID   string          `json:"commentId"`
	Author      *string         `json:"author"`
	Text        *string         `json:"text"`
	Likes       any             `json:"likes,omitempty"`
	PublishedAt *string         `json:"publishedAt"`
	Error       json.RawMessage `json:"error,omitempty"`
}

// HasError reports whether the record carries an error marker, null included.
func (c RawComment) HasError() bool {
	return len(c.Error) > 0
}

// RawVideo is the subset of a catalog video resource the cleaner reads.
type RawVideo struct {
	ID             string           `json:"id"`
	Snippet        *RawVideoSnippet `json:"snippet"`
	Statistics     map[string]any   `json:"statistics"`
	ContentDetails *RawVideoContent `json:"contentDetails"`
	Error          json.RawMessage  `json:"error,omitempty"`
}

type RawVideoSnippet struct {
	Title        *string `json:"title"`
	PublishedAt  *string `json:"publishedAt"`
	ChannelTitle *string `json:"channelTitle"`
}

type RawVideoContent struct {
	Duration *string `json:"duration"`
}

func (v RawVideo) HasError() bool {
	return len(v.Error) > 0
}
