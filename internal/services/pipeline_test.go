package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BerylCAtieno/youtube-medallion/internal/analyzer"
	"github.com/BerylCAtieno/youtube-medallion/internal/config"
	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
	"github.com/BerylCAtieno/youtube-medallion/internal/repository"
	"github.com/BerylCAtieno/youtube-medallion/internal/storage"
	"github.com/BerylCAtieno/youtube-medallion/internal/utils"
	"github.com/BerylCAtieno/youtube-medallion/internal/youtube"
)

var testDate = partition.Date{Year: 2025, Month: time.March, Day: 14}

type fakeCatalog struct {
	calls    int
	failFor  string
	comments map[string][]string
}

func (f *fakeCatalog) UploadsPlaylist(ctx context.Context, channelID string) (string, error) {
	f.calls++
	return "UU-" + channelID, nil
}

func (f *fakeCatalog) PlaylistVideoIDs(ctx context.Context, playlistID string, limit int) ([]string, error) {
	f.calls++
	return []string{"v1", "v2"}, nil
}

func (f *fakeCatalog) Videos(ctx context.Context, ids []string) ([]json.RawMessage, error) {
	f.calls++
	items := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		items = append(items, json.RawMessage(fmt.Sprintf(
			`{"id":%q,"snippet":{"title":"Title %s","publishedAt":"2025-03-01T00:00:00Z","channelTitle":"Lab"},"statistics":{"viewCount":"100","likeCount":"7"},"contentDetails":{"duration":"PT1H"}}`,
			id, id)))
	}
	return items, nil
}

func (f *fakeCatalog) CommentThreads(ctx context.Context, videoID string, maxResults int) ([]youtube.CommentThread, error) {
	f.calls++
	if videoID == f.failFor {
		return nil, &youtube.APIError{Endpoint: "commentThreads", StatusCode: http.StatusForbidden, Body: "commentsDisabled"}
	}
	var threads []youtube.CommentThread
	for i, text := range f.comments[videoID] {
		text := text
		var thread youtube.CommentThread
		thread.Snippet.TopLevelComment.ID = fmt.Sprintf("%s-c%d", videoID, i)
		thread.Snippet.TopLevelComment.Snippet.TextDisplay = &text
		threads = append(threads, thread)
	}
	return threads, nil
}

// labelAnalyzer answers with a sentiment chosen from the prompt text.
type labelAnalyzer struct {
	mu    sync.Mutex
	calls int
}

func (a *labelAnalyzer) Complete(ctx context.Context, p analyzer.Prompt) (string, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()

	switch {
	case p.JSONMode:
		return `{"sentiment":"Neutral","emotions":["curiosity"],"topics":["health"]}`, nil
	case strings.Contains(p.User, "love"):
		return `{"sentiment":"positive","score":0.9,"emotion":"joy","summary":"likes it"}`, nil
	case strings.Contains(p.User, "hate"):
		return `{"sentiment":"negative","score":-0.8,"emotion":"anger","summary":"dislikes it"}`, nil
	default:
		return "I am not able to answer in JSON", nil
	}
}

type memoryRuns struct {
	mu   sync.Mutex
	runs map[string]models.StageRun
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{runs: make(map[string]models.StageRun)}
}

func (m *memoryRuns) Create(ctx context.Context, run *models.StageRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *memoryRuns) Finish(ctx context.Context, run *models.StageRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return repository.ErrRunNotFound
	}
	m.runs[run.ID] = *run
	return nil
}

func (m *memoryRuns) Get(ctx context.Context, id string) (*models.StageRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	return &run, nil
}

func (m *memoryRuns) List(ctx context.Context, filter repository.RunFilter) ([]models.StageRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StageRun
	for _, run := range m.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

type fixture struct {
	cfg      *config.Config
	store    *storage.MemoryStorage
	catalog  *fakeCatalog
	analyzer *labelAnalyzer
	runs     *memoryRuns
	service  PipelineService
	clock    time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		BronzeContainer:      "bronze",
		SilverContainer:      "silver",
		GoldContainer:        "gold",
		YouTubeAPIKey:        "yt-key",
		YouTubeChannelID:     "UC1",
		YouTubeMaxResults:    10,
		ClassifierEndpoint:   "https://classifier.example",
		ClassifierKey:        "aoai-key",
		ClassifierDeployment: "gpt",
		EnrichWorkers:        1,
	}
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()

	f := &fixture{
		cfg:   cfg,
		store: storage.NewMemoryStorage(),
		catalog: &fakeCatalog{comments: map[string][]string{
			"v1": {"I love this", "I hate this"},
			"v2": {"   ", "love it", "meh"},
		}},
		analyzer: &labelAnalyzer{},
		runs:     newMemoryRuns(),
		clock:    time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC),
	}
	f.service = New(Dependencies{
		Config:   cfg,
		Storage:  f.store,
		Catalog:  f.catalog,
		Analyzer: f.analyzer,
		Runs:     f.runs,
		Logger:   utils.NewNopLogger(),
		Clock: func() time.Time {
			f.clock = f.clock.Add(time.Second)
			return f.clock
		},
	})
	return f
}

func (f *fixture) document(t *testing.T, layer partition.Layer, entity partition.Entity) []byte {
	t.Helper()
	loc := partition.DefaultContainers().Address(layer, entity, testDate)
	data, err := f.store.Download(context.Background(), loc)
	if err != nil {
		t.Fatalf("download %s: %v", loc, err)
	}
	return data
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *utils.AppError, got %T: %v", err, err)
	}
	return appErr.StatusCode
}

func TestRunAll(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	results, err := f.service.RunAll(ctx, testDate)
	if err != nil {
		t.Fatalf("RunAll returned error: %v", err)
	}
	if len(results) != 7 {
		t.Fatalf("expected 7 stage results, got %d", len(results))
	}

	if results[0].Message != "OK - Saved 2 videos to bronze/youtube/videos/ingest_date=2025-03-14/videos_raw.json" {
		t.Fatalf("unexpected ingest message %q", results[0].Message)
	}
	if results[1].Message != "OK - Saved 5 comments to bronze/youtube/comments/ingest_date=2025-03-14/comments_raw.json" {
		t.Fatalf("unexpected comment ingest message %q", results[1].Message)
	}
	if results[3].Rows != 4 {
		t.Fatalf("blank comment should be dropped by the cleaner, got %d rows", results[3].Rows)
	}
	if results[5].Fallbacks != 1 {
		t.Fatalf("expected one fallback for the non-JSON reply, got %d", results[5].Fallbacks)
	}

	kpis, err := f.service.GetKPIs(ctx, testDate)
	if err != nil {
		t.Fatalf("GetKPIs returned error: %v", err)
	}
	if kpis.TotalVideos != 2 || kpis.TotalComments != 4 {
		t.Fatalf("unexpected totals %+v", kpis)
	}
	if kpis.VideoSentimentCounts["neutral"] != 2 {
		t.Fatalf("unexpected video counts %v", kpis.VideoSentimentCounts)
	}
	want := map[string]int{"positive": 2, "negative": 1, "neutral": 1}
	for label, n := range want {
		if kpis.CommentSentimentCounts[label] != n {
			t.Fatalf("comment counts %v, want %v", kpis.CommentSentimentCounts, want)
		}
	}

	runs, _ := f.service.ListRuns(ctx, repository.RunFilter{Status: models.RunSucceeded})
	if len(runs) != 7 {
		t.Fatalf("expected 7 succeeded runs in the ledger, got %d", len(runs))
	}
	for _, r := range results {
		if r.RunID == "" {
			t.Fatalf("result %s/%s has no run id", r.Stage, r.Entity)
		}
	}
}

func TestGoldKeepsSilverFields(t *testing.T) {
	f := newFixture(t, testConfig())
	if _, err := f.service.RunAll(context.Background(), testDate); err != nil {
		t.Fatalf("RunAll returned error: %v", err)
	}

	var gold struct {
		Rows  int              `json:"rows"`
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(f.document(t, partition.Gold, partition.Videos), &gold); err != nil {
		t.Fatalf("decode gold videos: %v", err)
	}
	if gold.Rows != len(gold.Items) || gold.Rows != 2 {
		t.Fatalf("unexpected gold rows %d / %d", gold.Rows, len(gold.Items))
	}
	item := gold.Items[0]
	if item["video_id"] != "v1" || item["title"] != "Title v1" || item["view_count"] != float64(100) {
		t.Fatalf("silver fields lost in %v", item)
	}
	if item["sentiment"] != "neutral" {
		t.Fatalf("expected case-normalized sentiment, got %v", item["sentiment"])
	}
}

func TestIngestCommentsRequiresVideoIDs(t *testing.T) {
	f := newFixture(t, testConfig())

	_, err := f.service.IngestComments(context.Background(), testDate, models.IngestCommentsRequest{})
	if statusOf(t, err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if f.store.Writes() != 0 || f.catalog.calls != 0 {
		t.Fatal("nothing should be called or written")
	}
}

func TestIngestCommentsDefaultsCap(t *testing.T) {
	f := newFixture(t, testConfig())
	zero := 0

	result, err := f.service.IngestComments(context.Background(), testDate, models.IngestCommentsRequest{
		VideoIDs:            []string{"v1"},
		MaxCommentsPerVideo: &zero,
	})
	if err != nil {
		t.Fatalf("IngestComments returned error: %v", err)
	}
	if result.Rows != 2 {
		t.Fatalf("expected 2 comments, got %d", result.Rows)
	}

	var doc models.BronzeComments
	if err := json.Unmarshal(f.document(t, partition.Bronze, partition.Comments), &doc); err != nil {
		t.Fatalf("decode bronze comments: %v", err)
	}
	if doc.VideoCount != 1 || doc.CommentCount != 2 || doc.Items[1].CommentID != "v1-c1" {
		t.Fatalf("unexpected bronze document %+v", doc)
	}
}

func TestConfigurationErrorPrecedesNetwork(t *testing.T) {
	cfg := testConfig()
	cfg.YouTubeAPIKey = ""
	cfg.ClassifierKey = ""
	f := newFixture(t, cfg)
	ctx := context.Background()

	_, err := f.service.IngestVideos(ctx, testDate)
	if !errors.Is(err, config.ErrMissing) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var missing *config.MissingError
	if !errors.As(err, &missing) || missing.Name != "YOUTUBE_API_KEY" {
		t.Fatalf("expected YOUTUBE_API_KEY to be named, got %v", err)
	}

	_, err = f.service.EnrichComments(ctx, testDate)
	if !errors.As(err, &missing) || missing.Name != "AOAI_KEY" {
		t.Fatalf("expected AOAI_KEY to be named, got %v", err)
	}

	if f.catalog.calls != 0 || f.analyzer.calls != 0 || f.store.Writes() != 0 {
		t.Fatal("no external call or write may happen on a configuration error")
	}
}

func TestUpstreamFailureWritesNothing(t *testing.T) {
	f := newFixture(t, testConfig())
	f.catalog.failFor = "v2"

	_, err := f.service.IngestComments(context.Background(), testDate, models.IngestCommentsRequest{VideoIDs: []string{"v1", "v2"}})
	if statusOf(t, err) != http.StatusBadGateway {
		t.Fatalf("expected 502, got %v", err)
	}
	var apiErr *youtube.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("upstream error should be preserved, got %v", err)
	}
	if f.store.Writes() != 0 {
		t.Fatal("a failed ingest must not write a bronze document")
	}

	failed, _ := f.service.ListRuns(context.Background(), repository.RunFilter{Status: models.RunFailed})
	if len(failed) != 1 || failed[0].Error == "" || failed[0].FinishedAt == nil {
		t.Fatalf("expected one failed run in the ledger, got %+v", failed)
	}
}

func TestMissingInputIsNotFound(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	for name, run := range map[string]func() error{
		"clean":     func() error { _, err := f.service.CleanVideos(ctx, testDate); return err },
		"enrich":    func() error { _, err := f.service.EnrichComments(ctx, testDate); return err },
		"aggregate": func() error { _, err := f.service.Aggregate(ctx, testDate); return err },
		"kpis":      func() error { _, err := f.service.GetKPIs(ctx, testDate); return err },
	} {
		err := run()
		if statusOf(t, err) != http.StatusNotFound || !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", name, err)
		}
	}
	if f.store.Writes() != 0 {
		t.Fatal("nothing should be written without input")
	}
}

func TestRerunIsIdempotent(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	if _, err := f.service.RunAll(ctx, testDate); err != nil {
		t.Fatalf("RunAll returned error: %v", err)
	}

	stages := []struct {
		layer  partition.Layer
		entity partition.Entity
		run    func() error
	}{
		{partition.Silver, partition.Comments, func() error { _, err := f.service.CleanComments(ctx, testDate); return err }},
		{partition.Silver, partition.Videos, func() error { _, err := f.service.CleanVideos(ctx, testDate); return err }},
		{partition.Gold, partition.Comments, func() error { _, err := f.service.EnrichComments(ctx, testDate); return err }},
		{partition.Gold, partition.Videos, func() error { _, err := f.service.EnrichVideos(ctx, testDate); return err }},
	}
	for _, st := range stages {
		before := f.document(t, st.layer, st.entity)
		if err := st.run(); err != nil {
			t.Fatalf("re-run %s/%s: %v", st.layer, st.entity, err)
		}
		if after := f.document(t, st.layer, st.entity); !bytes.Equal(before, after) {
			t.Fatalf("re-run of %s/%s changed the document", st.layer, st.entity)
		}
	}

	first, _ := f.service.GetKPIs(ctx, testDate)
	if _, err := f.service.Aggregate(ctx, testDate); err != nil {
		t.Fatalf("re-run aggregate: %v", err)
	}
	second, _ := f.service.GetKPIs(ctx, testDate)
	if !second.GeneratedAt.After(first.GeneratedAt) {
		t.Fatal("generated_at should reflect the latest write")
	}
	first.GeneratedAt, second.GeneratedAt = time.Time{}, time.Time{}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("KPIs differ beyond the timestamp:\n%s\n%s", a, b)
	}
}

func TestRunStageRejectsUnknownCombination(t *testing.T) {
	f := newFixture(t, testConfig())

	_, err := f.service.RunStage(context.Background(), StageClean, partition.Final, testDate)
	if statusOf(t, err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestPartitions(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	for _, d := range []partition.Date{testDate, {Year: 2025, Month: time.March, Day: 12}} {
		if _, err := f.service.IngestVideos(ctx, d); err != nil {
			t.Fatalf("IngestVideos %s: %v", d, err)
		}
	}

	dates, err := f.service.Partitions(ctx, partition.Bronze, partition.Videos)
	if err != nil {
		t.Fatalf("Partitions returned error: %v", err)
	}
	if len(dates) != 2 || dates[0] != testDate {
		t.Fatalf("unexpected partitions %v", dates)
	}

	empty, err := f.service.Partitions(ctx, partition.Gold, partition.Final)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected an empty list, got %v %v", empty, err)
	}
}

func TestTodayUsesConfiguredClock(t *testing.T) {
	f := newFixture(t, testConfig())

	got := f.service.Today()
	if want := partition.DateOf(f.clock.In(time.Local)); got != want {
		t.Fatalf("Today() = %s, want %s", got, want)
	}
}
