package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
	"github.com/BerylCAtieno/youtube-medallion/internal/repository"
	"github.com/BerylCAtieno/youtube-medallion/internal/services"
)

var today = partition.Date{Year: 2025, Month: time.March, Day: 14}

// stubService records which operations ran and for which date.
type stubService struct {
	services.PipelineService

	calls   []string
	dates   []partition.Date
	request models.IngestCommentsRequest
	failAll error
}

func (s *stubService) result(stage, entity string, date partition.Date) *models.StageResult {
	s.calls = append(s.calls, stage+" "+entity)
	s.dates = append(s.dates, date)
	return &models.StageResult{
		Stage:      stage,
		Entity:     entity,
		IngestDate: date.String(),
		Rows:       3,
		Message:    "OK - " + stage + " " + entity,
	}
}

func (s *stubService) Today() partition.Date { return today }

func (s *stubService) IngestVideos(ctx context.Context, date partition.Date) (*models.StageResult, error) {
	return s.result("ingest", "videos", date), nil
}

func (s *stubService) IngestComments(ctx context.Context, date partition.Date, req models.IngestCommentsRequest) (*models.StageResult, error) {
	s.request = req
	return s.result("ingest", "comments", date), nil
}

func (s *stubService) RunStage(ctx context.Context, stage services.Stage, entity partition.Entity, date partition.Date) (*models.StageResult, error) {
	return s.result(string(stage), string(entity), date), nil
}

func (s *stubService) Aggregate(ctx context.Context, date partition.Date) (*models.StageResult, error) {
	return s.result("aggregate", "final", date), nil
}

func (s *stubService) RunAll(ctx context.Context, date partition.Date) ([]models.StageResult, error) {
	first := s.result("ingest", "videos", date)
	return []models.StageResult{*first}, s.failAll
}

func (s *stubService) GetKPIs(ctx context.Context, date partition.Date) (*models.KPIs, error) {
	return &models.KPIs{
		IngestDate:             date,
		TotalVideos:            2,
		TotalComments:          3,
		VideoSentimentCounts:   map[string]int{"neutral": 2},
		CommentSentimentCounts: map[string]int{"positive": 1, "unknown": 2},
		GeneratedAt:            time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubService) ListRuns(ctx context.Context, filter repository.RunFilter) ([]models.StageRun, error) {
	started := time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)
	return []models.StageRun{{
		ID: "r1", Stage: "clean", Entity: "videos", IngestDate: "2025-03-14",
		Rows: 10, Status: models.RunSucceeded, StartedAt: started, FinishedAt: &finished,
	}}, nil
}

func (s *stubService) Partitions(ctx context.Context, layer partition.Layer, entity partition.Entity) ([]partition.Date, error) {
	return []partition.Date{today, {Year: 2025, Month: time.March, Day: 13}}, nil
}

func execute(t *testing.T, svc *stubService, args ...string) (string, error) {
	t.Helper()

	ctx := newCommandContext()
	ctx.service = svc

	cmd := newRootCommand(ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--lock", filepath.Join(t.TempDir(), "pipeline.lock")))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStageCommandsPrintSummary(t *testing.T) {
	tests := []struct {
		args []string
		call string
	}{
		{[]string{"ingest", "videos"}, "ingest videos"},
		{[]string{"ingest", "comments"}, "ingest comments"},
		{[]string{"clean", "videos"}, "clean videos"},
		{[]string{"clean", "comments"}, "clean comments"},
		{[]string{"enrich", "videos"}, "enrich videos"},
		{[]string{"enrich", "comments"}, "enrich comments"},
		{[]string{"aggregate"}, "aggregate final"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			svc := &stubService{}
			out, err := execute(t, svc, tt.args...)
			if err != nil {
				t.Fatalf("execute returned error: %v", err)
			}
			if len(svc.calls) != 1 || svc.calls[0] != tt.call {
				t.Fatalf("unexpected calls %v", svc.calls)
			}
			if svc.dates[0] != today {
				t.Fatalf("expected today's partition, got %s", svc.dates[0])
			}
			if strings.TrimSpace(out) != "OK - "+tt.call {
				t.Fatalf("unexpected output %q", out)
			}
		})
	}
}

func TestIngestCommentsFlags(t *testing.T) {
	svc := &stubService{}
	_, err := execute(t, svc, "ingest", "comments", "--video-id", "a,b", "--video-id", "c", "--max-per-video", "20", "--date", "2025-03-01")
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}

	if strings.Join(svc.request.VideoIDs, ",") != "a,b,c" {
		t.Fatalf("unexpected ids %v", svc.request.VideoIDs)
	}
	if svc.request.MaxCommentsPerVideo == nil || *svc.request.MaxCommentsPerVideo != 20 {
		t.Fatalf("unexpected cap %v", svc.request.MaxCommentsPerVideo)
	}
	if svc.dates[0].String() != "2025-03-01" {
		t.Fatalf("unexpected date %s", svc.dates[0])
	}
}

func TestInvalidDate(t *testing.T) {
	svc := &stubService{}
	if _, err := execute(t, svc, "clean", "videos", "--date", "March 1"); err == nil {
		t.Fatal("expected an error for a malformed date")
	}
	if len(svc.calls) != 0 {
		t.Fatal("no stage should run")
	}
}

func TestRunAllReportsPartialProgress(t *testing.T) {
	svc := &stubService{failAll: errors.New("classifier down")}

	out, err := execute(t, svc, "run-all")
	if err == nil || !strings.Contains(err.Error(), "after 1 completed stages") {
		t.Fatalf("unexpected error %v", err)
	}
	if !strings.Contains(out, "OK - ingest videos") {
		t.Fatalf("completed stages should still be printed, got %q", out)
	}
}

func TestLockContention(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "pipeline.lock")
	held := flock.New(lockPath)
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("could not take lock: %v", err)
	}
	defer held.Unlock()

	ctx := newCommandContext()
	ctx.lockPath = lockPath

	ran := false
	err := ctx.withLock(func() error {
		ran = true
		return nil
	})
	if err == nil || ran {
		t.Fatalf("expected lock contention error, got %v (ran=%v)", err, ran)
	}
}

func TestKPIsTable(t *testing.T) {
	out, err := execute(t, &stubService{}, "kpis")
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	for _, want := range []string{"KPIs for 2025-03-14", "neutral", "positive", "unknown", "total"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestKPIRowsOrder(t *testing.T) {
	rows := kpiRows(&models.KPIs{
		TotalVideos:            1,
		TotalComments:          3,
		VideoSentimentCounts:   map[string]int{"positive": 1},
		CommentSentimentCounts: map[string]int{"unknown": 1, "negative": 2},
	})

	got := make([]string, 0, len(rows))
	for _, r := range rows {
		got = append(got, strings.Join(r, ":"))
	}
	want := "videos:positive:1,videos:total:1,comments:negative:2,comments:unknown:1,comments:total:3"
	if strings.Join(got, ",") != want {
		t.Fatalf("got %s", strings.Join(got, ","))
	}
}

func TestRunsJSON(t *testing.T) {
	out, err := execute(t, &stubService{}, "runs", "--json")
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}

	var runs []models.StageRun
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestRunsTable(t *testing.T) {
	out, err := execute(t, &stubService{}, "runs")
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if !strings.Contains(out, "succeeded") || !strings.Contains(out, "1.5s") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}

func TestPartitions(t *testing.T) {
	out, err := execute(t, &stubService{}, "partitions", "bronze", "videos")
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if strings.TrimSpace(out) != "2025-03-14\n2025-03-13" {
		t.Fatalf("unexpected output %q", out)
	}

	if _, err := execute(t, &stubService{}, "partitions", "platinum", "videos"); err == nil {
		t.Fatal("expected an error for an unknown layer")
	}
}
