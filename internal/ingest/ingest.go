// Package ingest pulls raw video metadata and comment threads from the
// catalog API and shapes them into bronze documents. Any catalog error aborts
// the ingest; no partial document is produced.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
	"github.com/BerylCAtieno/youtube-medallion/internal/youtube"
)

// DefaultCommentsPerVideo applies when a caller does not set a per-video cap.
const DefaultCommentsPerVideo = 50

// Catalog is the part of the YouTube Data API the ingestors need.
type Catalog interface {
	UploadsPlaylist(ctx context.Context, channelID string) (string, error)
	PlaylistVideoIDs(ctx context.Context, playlistID string, limit int) ([]string, error)
	Videos(ctx context.Context, ids []string) ([]json.RawMessage, error)
	CommentThreads(ctx context.Context, videoID string, maxResults int) ([]youtube.CommentThread, error)
}

var _ Catalog = (*youtube.Client)(nil)

// Videos resolves the channel's uploads playlist, collects up to maxResults
// video IDs from it and batch-fetches their metadata.
func Videos(ctx context.Context, catalog Catalog, channelID string, maxResults int, date partition.Date, pulledAt time.Time) (models.BronzeVideos, error) {
	uploads, err := catalog.UploadsPlaylist(ctx, channelID)
	if err != nil {
		return models.BronzeVideos{}, fmt.Errorf("resolve uploads playlist: %w", err)
	}

	ids, err := catalog.PlaylistVideoIDs(ctx, uploads, maxResults)
	if err != nil {
		return models.BronzeVideos{}, fmt.Errorf("list uploads: %w", err)
	}

	items := []json.RawMessage{}
	if len(ids) > 0 {
		items, err = catalog.Videos(ctx, ids)
		if err != nil {
			return models.BronzeVideos{}, fmt.Errorf("fetch video details: %w", err)
		}
	}

	return models.BronzeVideos{
		IngestDate: date,
		ChannelID:  channelID,
		PulledAt:   pulledAt.UTC(),
		VideoCount: len(ids),
		Items:      items,
	}, nil
}

// Comments fetches one page of top-level threads per video and flattens them,
// keeping video order first and response order within a video.
func Comments(ctx context.Context, catalog Catalog, videoIDs []string, perVideo int, date partition.Date, pulledAt time.Time) (models.BronzeComments, error) {
	if perVideo <= 0 {
		perVideo = DefaultCommentsPerVideo
	}
	perVideo = youtube.ClampPageSize(perVideo)

	items := []models.RawComment{}
	for _, videoID := range videoIDs {
		threads, err := catalog.CommentThreads(ctx, videoID, perVideo)
		if err != nil {
			return models.BronzeComments{}, fmt.Errorf("fetch comments for %s: %w", videoID, err)
		}
		for _, thread := range threads {
			items = append(items, flatten(videoID, thread))
		}
	}

	return models.BronzeComments{
		IngestDate:   date,
		PulledAt:     pulledAt.UTC(),
		VideoCount:   len(videoIDs),
		CommentCount: len(items),
		Items:        items,
	}, nil
}

func flatten(videoID string, thread youtube.CommentThread) models.RawComment {
	top := thread.Snippet.TopLevelComment
	comment := models.RawComment{
		VideoID:     videoID,
		CommentID:   top.ID,
		Author:      top.Snippet.AuthorDisplayName,
		Text:        top.Snippet.TextDisplay,
		PublishedAt: top.Snippet.PublishedAt,
	}
	if top.Snippet.LikeCount != nil {
		comment.Likes = *top.Snippet.LikeCount
	}
	return comment
}

// VideoIDs lists the identifiers of the videos in a bronze video document, in order.
func VideoIDs(doc models.BronzeVideos) []string {
	ids := make([]string, 0, len(doc.Items))
	for _, raw := range doc.Items {
		var v struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(raw, &v) == nil && v.ID != "" {
			ids = append(ids, v.ID)
		}
	}
	return ids
}
