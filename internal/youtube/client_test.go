package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUploadsPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("id") != "UC123" || q.Get("part") != "contentDetails" || q.Get("key") != "k" {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"items":[{"contentDetails":{"relatedPlaylists":{"uploads":"UU123"}}}]}`))
	}))
	defer server.Close()

	client := NewClient("k", server.URL)
	got, err := client.UploadsPlaylist(context.Background(), "UC123")
	if err != nil {
		t.Fatalf("UploadsPlaylist returned error: %v", err)
	}
	if got != "UU123" {
		t.Fatalf("expected UU123, got %s", got)
	}
}

func TestUploadsPlaylistUnknownChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	client := NewClient("k", server.URL)
	if _, err := client.UploadsPlaylist(context.Background(), "UCmissing"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestPlaylistVideoIDsPagesUntilLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		switch q.Get("pageToken") {
		case "":
			if q.Get("maxResults") != "3" {
				t.Fatalf("expected maxResults=3 on first page, got %s", q.Get("maxResults"))
			}
			_, _ = w.Write([]byte(`{"nextPageToken":"p2","items":[
				{"contentDetails":{"videoId":"a"}},
				{"contentDetails":{"videoId":"b"}}]}`))
		case "p2":
			if q.Get("maxResults") != "1" {
				t.Fatalf("expected maxResults=1 on second page, got %s", q.Get("maxResults"))
			}
			_, _ = w.Write([]byte(`{"nextPageToken":"p3","items":[
				{"contentDetails":{"videoId":"c"}},
				{"contentDetails":{"videoId":"d"}}]}`))
		default:
			t.Fatalf("unexpected page token %s", q.Get("pageToken"))
		}
	}))
	defer server.Close()

	client := NewClient("k", server.URL)
	ids, err := client.PlaylistVideoIDs(context.Background(), "UU123", 3)
	if err != nil {
		t.Fatalf("PlaylistVideoIDs returned error: %v", err)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Fatalf("unexpected ids %v", ids)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestVideosBatches(t *testing.T) {
	var batches []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		batches = append(batches, r.URL.Query().Get("id"))
		var items []string
		for _, id := range ids {
			items = append(items, fmt.Sprintf(`{"id":%q}`, id))
		}
		_, _ = w.Write([]byte(`{"items":[` + strings.Join(items, ",") + `]}`))
	}))
	defer server.Close()

	ids := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		ids = append(ids, fmt.Sprintf("v%02d", i))
	}

	client := NewClient("k", server.URL)
	items, err := client.Videos(context.Background(), ids)
	if err != nil {
		t.Fatalf("Videos returned error: %v", err)
	}
	if len(items) != 60 {
		t.Fatalf("expected 60 items, got %d", len(items))
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if string(items[59]) != `{"id":"v59"}` {
		t.Fatalf("unexpected last item %s", items[59])
	}
}

func TestCommentThreads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("maxResults") != "100" || q.Get("textFormat") != "plainText" || q.Get("videoId") != "v1" {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"t1","snippet":{"videoId":"v1","topLevelComment":{"id":"c1","snippet":{
			"authorDisplayName":"@ann","textDisplay":"nice","likeCount":4,"publishedAt":"2025-01-01T00:00:00Z"}}}}]}`))
	}))
	defer server.Close()

	client := NewClient("k", server.URL)
	threads, err := client.CommentThreads(context.Background(), "v1", 500)
	if err != nil {
		t.Fatalf("CommentThreads returned error: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(threads))
	}
	top := threads[0].Snippet.TopLevelComment
	if top.ID != "c1" || *top.Snippet.TextDisplay != "nice" || *top.Snippet.LikeCount != 4 {
		t.Fatalf("unexpected thread %+v", top)
	}
}

func TestAPIErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"commentsDisabled"}}`))
	}))
	defer server.Close()

	client := NewClient("k", server.URL)
	_, err := client.CommentThreads(context.Background(), "v1", 10)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Endpoint != "commentThreads" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient("", "http://127.0.0.1:1")
	if _, err := client.UploadsPlaylist(context.Background(), "UC123"); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestClampPageSize(t *testing.T) {
	tests := map[int]int{-5: 1, 0: 1, 50: 50, 100: 100, 101: 100}
	for in, want := range tests {
		if got := ClampPageSize(in); got != want {
			t.Errorf("ClampPageSize(%d) = %d, want %d", in, got, want)
		}
	}
}
