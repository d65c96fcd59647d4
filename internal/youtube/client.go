// Package youtube is a small client for the YouTube Data API v3 endpoints the
// ingest stages read: channels, playlistItems, videos and commentThreads.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BerylCAtieno/youtube-medallion/internal/metrics"
)

const (
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	// MaxCommentPage is the largest maxResults commentThreads accepts.
	MaxCommentPage  = 100
	maxPlaylistPage = 50
	maxVideoBatch   = 50
)

// APIError is returned for any non-2xx catalog response.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube %s: http %d: %s", e.Endpoint, e.StatusCode, strings.TrimSpace(e.Body))
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type channelListResponse struct {
	Items []struct {
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemListResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type videoListResponse struct {
	Items []json.RawMessage `json:"items"`
}

type commentThreadListResponse struct {
	Items []CommentThread `json:"items"`
}

// CommentThread is a commentThreads resource reduced to its top-level comment.
type CommentThread struct {
	ID      string `json:"id"`
	Snippet struct {
		VideoID         string `json:"videoId"`
		TopLevelComment struct {
			ID      string         `json:"id"`
			Snippet CommentSnippet `json:"snippet"`
		} `json:"topLevelComment"`
	} `json:"snippet"`
}

type CommentSnippet struct {
	AuthorDisplayName *string `json:"authorDisplayName"`
	TextDisplay       *string `json:"textDisplay"`
	LikeCount         *int64  `json:"likeCount"`
	PublishedAt       *string `json:"publishedAt"`
}

// UploadsPlaylist resolves the channel's canonical uploads playlist ID.
func (c *Client) UploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", channelID)

	var resp channelListResponse
	if err := c.get(ctx, "channels", params, &resp); err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("youtube channels: channel %s not found", channelID)
	}

	uploads := resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return "", fmt.Errorf("youtube channels: channel %s has no uploads playlist", channelID)
	}
	return uploads, nil
}

// PlaylistVideoIDs pages through a playlist until limit IDs are collected or
// the playlist is exhausted. IDs keep the order the API returned them in.
func (c *Client) PlaylistVideoIDs(ctx context.Context, playlistID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	ids := make([]string, 0, limit)
	pageToken := ""
	for len(ids) < limit {
		params := url.Values{}
		params.Set("part", "contentDetails")
		params.Set("playlistId", playlistID)
		params.Set("maxResults", strconv.Itoa(min(limit-len(ids), maxPlaylistPage)))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var resp playlistItemListResponse
		if err := c.get(ctx, "playlistItems", params, &resp); err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			if len(ids) == limit {
				break
			}
			if id := item.ContentDetails.VideoID; id != "" {
				ids = append(ids, id)
			}
		}

		if resp.NextPageToken == "" || len(resp.Items) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}

	return ids, nil
}

// Videos fetches full metadata (snippet, statistics, contentDetails) for ids.
// Unavailable videos are simply absent from the result.
func (c *Client) Videos(ctx context.Context, ids []string) ([]json.RawMessage, error) {
	items := make([]json.RawMessage, 0, len(ids))
	for start := 0; start < len(ids); start += maxVideoBatch {
		end := min(start+maxVideoBatch, len(ids))

		params := url.Values{}
		params.Set("part", "snippet,statistics,contentDetails")
		params.Set("id", strings.Join(ids[start:end], ","))

		var resp videoListResponse
		if err := c.get(ctx, "videos", params, &resp); err != nil {
			return nil, err
		}
		items = append(items, resp.Items...)
	}
	return items, nil
}

// CommentThreads returns up to maxResults top-level threads for a video.
func (c *Client) CommentThreads(ctx context.Context, videoID string, maxResults int) ([]CommentThread, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)
	params.Set("maxResults", strconv.Itoa(ClampPageSize(maxResults)))
	params.Set("textFormat", "plainText")

	var resp commentThreadListResponse
	if err := c.get(ctx, "commentThreads", params, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ClampPageSize bounds a per-video comment cap to what one request can return.
func ClampPageSize(n int) int {
	if n <= 0 {
		return 1
	}
	return min(n, MaxCommentPage)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, v any) (err error) {
	defer func() { metrics.ExternalCall("youtube", err) }()

	if c.apiKey == "" {
		return errors.New("youtube: api key required")
	}
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("youtube %s: new request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("youtube %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("youtube %s: decode response: %w", endpoint, err)
	}
	return nil
}
