package models

import "github.com/BerylCAtieno/youtube-medallion/internal/partition"

// CleanComment is the narrow silver schema for a comment. Text is never empty.
type CleanComment struct {
	VideoID     string  `json:"videoId"`
	CommentID   string  `json:"commentId"`
	Author      *string `json:"author"`
	Text        string  `json:"text"`
	Likes       *int64  `json:"likes"`
	PublishedAt *string `json:"publishedAt"`
}

// CleanVideo is the narrow silver schema for a video. Counts are nil when
// upstream sent something that is not an integer.
type CleanVideo struct {
	VideoID      string  `json:"video_id"`
	Title        *string `json:"title"`
	PublishedAt  *string `json:"published_at"`
	ChannelTitle *string `json:"channel_title"`
	Duration     *string `json:"duration"`
	ViewCount    *int64  `json:"view_count"`
	LikeCount    *int64  `json:"like_count"`
	CommentCount *int64  `json:"comment_count"`
}

type SilverComments struct {
	IngestDate partition.Date `json:"ingest_date"`
	Rows       int            `json:"rows"`
	Items      []CleanComment `json:"items"`
}

type SilverVideos struct {
	IngestDate partition.Date `json:"ingest_date"`
	Rows       int            `json:"rows"`
	Items      []CleanVideo   `json:"items"`
}
