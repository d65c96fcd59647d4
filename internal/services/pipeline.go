package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BerylCAtieno/youtube-medallion/internal/aggregate"
	"github.com/BerylCAtieno/youtube-medallion/internal/analyzer"
	"github.com/BerylCAtieno/youtube-medallion/internal/clean"
	"github.com/BerylCAtieno/youtube-medallion/internal/config"
	"github.com/BerylCAtieno/youtube-medallion/internal/enrich"
	"github.com/BerylCAtieno/youtube-medallion/internal/ingest"
	"github.com/BerylCAtieno/youtube-medallion/internal/metrics"
	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
	"github.com/BerylCAtieno/youtube-medallion/internal/repository"
	"github.com/BerylCAtieno/youtube-medallion/internal/storage"
	"github.com/BerylCAtieno/youtube-medallion/internal/utils"
	"github.com/BerylCAtieno/youtube-medallion/internal/youtube"
)

type Stage string

const (
	StageIngest    Stage = "ingest"
	StageClean     Stage = "clean"
	StageEnrich    Stage = "enrich"
	StageAggregate Stage = "aggregate"
)

// PipelineService runs the medallion stages against one ingest date. Each
// call reads its input document, transforms it in memory and overwrites its
// output document.
type PipelineService interface {
	IngestVideos(ctx context.Context, date partition.Date) (*models.StageResult, error)
	IngestComments(ctx context.Context, date partition.Date, req models.IngestCommentsRequest) (*models.StageResult, error)
	CleanVideos(ctx context.Context, date partition.Date) (*models.StageResult, error)
	CleanComments(ctx context.Context, date partition.Date) (*models.StageResult, error)
	EnrichVideos(ctx context.Context, date partition.Date) (*models.StageResult, error)
	EnrichComments(ctx context.Context, date partition.Date) (*models.StageResult, error)
	Aggregate(ctx context.Context, date partition.Date) (*models.StageResult, error)

	RunStage(ctx context.Context, stage Stage, entity partition.Entity, date partition.Date) (*models.StageResult, error)
	RunAll(ctx context.Context, date partition.Date) ([]models.StageResult, error)

	GetKPIs(ctx context.Context, date partition.Date) (*models.KPIs, error)
	ListRuns(ctx context.Context, filter repository.RunFilter) ([]models.StageRun, error)
	Partitions(ctx context.Context, layer partition.Layer, entity partition.Entity) ([]partition.Date, error)
	Today() partition.Date
}

// Dependencies are the collaborators of a pipeline service. Runs may be nil,
// which disables the run ledger.
type Dependencies struct {
	Config   *config.Config
	Storage  storage.Storage
	Catalog  ingest.Catalog
	Analyzer analyzer.Analyzer
	Runs     repository.RunRepository
	Logger   *utils.Logger
	Clock    func() time.Time
}

type pipelineService struct {
	cfg        *config.Config
	storage    storage.Storage
	catalog    ingest.Catalog
	enricher   *enrich.Enricher
	runs       repository.RunRepository
	containers partition.Containers
	logger     *utils.Logger
	now        func() time.Time
}

func New(deps Dependencies) PipelineService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger.With("component", "pipeline")

	return &pipelineService{
		cfg:      deps.Config,
		storage:  deps.Storage,
		catalog:  deps.Catalog,
		enricher: enrich.New(deps.Analyzer, deps.Config.EnrichWorkers, logger),
		runs:     deps.Runs,
		containers: partition.Containers{
			Bronze: deps.Config.BronzeContainer,
			Silver: deps.Config.SilverContainer,
			Gold:   deps.Config.GoldContainer,
		},
		logger: logger,
		now:    clock,
	}
}

// NewPipelineService wires the object store, catalog client and
// classification client described by cfg.
func NewPipelineService(cfg *config.Config, runs repository.RunRepository, logger *utils.Logger) (PipelineService, error) {
	store, err := storage.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	chat := analyzer.NewChatClient(analyzer.Config{
		Provider:   analyzer.Provider(cfg.ClassifierProvider),
		Endpoint:   cfg.ClassifierEndpoint,
		APIKey:     cfg.ClassifierKey,
		Deployment: cfg.ClassifierDeployment,
		APIVersion: cfg.ClassifierAPIVersion,
		Timeout:    cfg.ClassifierTimeout(),
	}, logger)

	return New(Dependencies{
		Config:   cfg,
		Storage:  store,
		Catalog:  youtube.NewClient(cfg.YouTubeAPIKey, cfg.YouTubeBaseURL),
		Analyzer: chat,
		Runs:     runs,
		Logger:   logger,
	}), nil
}

func (s *pipelineService) Today() partition.Date {
	return partition.DateOf(s.now().In(s.cfg.Location()))
}

// outcome is what a stage body reports back to runStage.
type outcome struct {
	rows      int
	fallbacks int
	summary   string
}

// runStage records the run in the ledger and metrics around body, which must
// perform its single write only after everything else succeeded.
func (s *pipelineService) runStage(ctx context.Context, stage Stage, entity partition.Entity, date partition.Date, dst partition.Location, body func(ctx context.Context) (outcome, error)) (*models.StageResult, error) {
	started := s.now()
	run := &models.StageRun{
		ID:         utils.GenerateID(),
		Stage:      string(stage),
		Entity:     string(entity),
		IngestDate: date.String(),
		Container:  dst.Container,
		Path:       dst.Path,
		Status:     models.RunRunning,
		StartedAt:  started,
	}
	s.recordStart(ctx, run)

	out, err := body(ctx)

	finished := s.now()
	run.FinishedAt = &finished
	run.Rows = out.rows
	run.Fallbacks = out.fallbacks
	if err != nil {
		run.Status = models.RunFailed
		run.Error = err.Error()
	} else {
		run.Status = models.RunSucceeded
	}
	s.recordFinish(ctx, run)
	metrics.ObserveStage(string(stage), string(entity), started, out.rows, err)

	if err != nil {
		s.logger.Error("Stage failed",
			"stage", stage,
			"entity", entity,
			"ingest_date", date.String(),
			"error", err)
		return nil, stageError(err)
	}

	message := fmt.Sprintf("OK - %s to %s", out.summary, dst)
	s.logger.Info(message,
		"stage", stage,
		"entity", entity,
		"ingest_date", date.String(),
		"rows", out.rows,
		"fallbacks", out.fallbacks)

	result := &models.StageResult{
		Stage:      string(stage),
		Entity:     string(entity),
		IngestDate: date.String(),
		Container:  dst.Container,
		Path:       dst.Path,
		Rows:       out.rows,
		Fallbacks:  out.fallbacks,
		Message:    message,
	}
	if s.runs != nil {
		result.RunID = run.ID
	}
	return result, nil
}

// The ledger is bookkeeping: its failures are logged but never fail a stage.
func (s *pipelineService) recordStart(ctx context.Context, run *models.StageRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Create(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("Failed to record stage run", "run_id", run.ID, "error", err)
	}
}

func (s *pipelineService) recordFinish(ctx context.Context, run *models.StageRun) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("Failed to finish stage run", "run_id", run.ID, "error", err)
	}
}

func (s *pipelineService) IngestVideos(ctx context.Context, date partition.Date) (*models.StageResult, error) {
	if err := s.cfg.RequireYouTube(); err != nil {
		return nil, stageError(err)
	}

	dst := s.containers.Address(partition.Bronze, partition.Videos, date)
	return s.runStage(ctx, StageIngest, partition.Videos, date, dst, func(ctx context.Context) (outcome, error) {
		doc, err := ingest.Videos(ctx, s.catalog, s.cfg.YouTubeChannelID, s.cfg.YouTubeMaxResults, date, s.now())
		if err != nil {
			return outcome{}, err
		}
		if err := storage.WriteJSON(ctx, s.storage, dst, doc); err != nil {
			return outcome{}, err
		}
		return outcome{
			rows:    len(doc.Items),
			summary: fmt.Sprintf("Saved %d videos", doc.VideoCount),
		}, nil
	})
}

func (s *pipelineService) IngestComments(ctx context.Context, date partition.Date, req models.IngestCommentsRequest) (*models.StageResult, error) {
	if len(req.VideoIDs) == 0 {
		return nil, utils.NewBadRequestError("Provide video_ids in request body")
	}

	perVideo := ingest.DefaultCommentsPerVideo
	if req.MaxCommentsPerVideo != nil {
		perVideo = *req.MaxCommentsPerVideo
	}
	return s.ingestComments(ctx, date, req.VideoIDs, perVideo)
}

func (s *pipelineService) ingestComments(ctx context.Context, date partition.Date, videoIDs []string, perVideo int) (*models.StageResult, error) {
	if err := s.cfg.RequireYouTube(); err != nil {
		return nil, stageError(err)
	}

	dst := s.containers.Address(partition.Bronze, partition.Comments, date)
	return s.runStage(ctx, StageIngest, partition.Comments, date, dst, func(ctx context.Context) (outcome, error) {
		doc, err := ingest.Comments(ctx, s.catalog, videoIDs, perVideo, date, s.now())
		if err != nil {
			return outcome{}, err
		}
		if err := storage.WriteJSON(ctx, s.storage, dst, doc); err != nil {
			return outcome{}, err
		}
		return outcome{
			rows:    doc.CommentCount,
			summary: fmt.Sprintf("Saved %d comments", doc.CommentCount),
		}, nil
	})
}

// ingestCommentsForVideos pulls comments for the videos in the day's bronze
// video document.
func (s *pipelineService) ingestCommentsForVideos(ctx context.Context, date partition.Date) (*models.StageResult, error) {
	var videos models.BronzeVideos
	src := s.containers.Address(partition.Bronze, partition.Videos, date)
	if err := storage.ReadJSON(ctx, s.storage, src, &videos); err != nil {
		return nil, stageError(err)
	}
	return s.ingestComments(ctx, date, ingest.VideoIDs(videos), ingest.DefaultCommentsPerVideo)
}

func (s *pipelineService) CleanVideos(ctx context.Context, date partition.Date) (*models.StageResult, error) {
	src := s.containers.Address(partition.Bronze, partition.Videos, date)
	dst := s.containers.Address(partition.Silver, partition.Videos, date)

	return s.runStage(ctx, StageClean, partition.Videos, date, dst, func(ctx context.Context) (outcome, error) {
		var raw models.BronzeVideos
		if err := storage.ReadJSON(ctx, s.storage, src, &raw); err != nil {
			return outcome{}, err
		}
		doc := clean.Videos(raw, date)
		if err := storage.WriteJSON(ctx, s.storage, dst, doc); err != nil {
			return outcome{}, err
		}
		return outcome{rows: doc.Rows, summary: fmt.Sprintf("Wrote %d rows", doc.Rows)}, nil
	})
}

func (s *pipelineService) CleanComments(ctx context.Context, date partition.Date) (*models.StageResult, error) {
	src := s.containers.Address(partition.Bronze, partition.Comments, date)
	dst := s.containers.Address(partition.Silver, partition.Comments, date)

	return s.runStage(ctx, StageClean, partition.Comments, date, dst, func(ctx context.Context) (outcome, error) {
		var raw models.BronzeComments
		if err := storage.ReadJSON(ctx, s.storage, src, &raw); err != nil {
			return outcome{}, err
		}
		doc := clean.Comments(raw, date)
		if err := storage.WriteJSON(ctx, s.storage, dst, doc); err != nil {
			return outcome{}, err
		}
		return outcome{rows: doc.Rows, summary: fmt.Sprintf("Wrote %d rows", doc.Rows)}, nil
	})
}

func (s *pipelineService) EnrichVideos(ctx context.Context, date partition.Date) (*models.StageResult, error) {
	if err := s.cfg.RequireClassifier(); err != nil {
		return nil, stageError(err)
	}

	src := s.containers.Address(partition.Silver, partition.Videos, date)
	dst := s.containers.Address(partition.Gold, partition.Videos, date)

	return s.runStage(ctx, StageEnrich, partition.Videos, date, dst, func(ctx context.Context) (outcome, error) {
		var silver models.SilverVideos
		if err := storage.ReadJSON(ctx, s.storage, src, &silver); err != nil {
			return outcome{}, err
		}
		items, stats, err := s.enricher.Videos(ctx, silver.Items)
		if err != nil {
			return outcome{}, err
		}
		doc := models.GoldVideos{IngestDate: date, Rows: len(items), Items: items}
		if err := storage.WriteJSON(ctx, s.storage, dst, doc); err != nil {
			return outcome{}, err
		}
		return outcome{
			rows:      stats.Rows,
			fallbacks: stats.Fallbacks,
			summary:   fmt.Sprintf("Wrote %d rows", stats.Rows),
		}, nil
	})
}

func (s *pipelineService) EnrichComments(ctx context.Context, date partition.Date) (*models.StageResult, error) {
	if err := s.cfg.RequireClassifier(); err != nil {
		return nil, stageError(err)
	}

	src := s.containers.Address(partition.Silver, partition.Comments, date)
	dst := s.containers.Address(partition.Gold, partition.Comments, date)

	return s.runStage(ctx, StageEnrich, partition.Comments, date, dst, func(ctx context.Context) (outcome, error) {
		var silver models.SilverComments
		if err := storage.ReadJSON(ctx, s.storage, src, &silver); err != nil {
			return outcome{}, err
		}
		items, stats, err := s.enricher.Comments(ctx, silver.Items)
		if err != nil {
			return outcome{}, err
		}
		doc := models.GoldComments{IngestDate: date, Rows: len(items), Items: items}
		if err := storage.WriteJSON(ctx, s.storage, dst, doc); err != nil {
			return outcome{}, err
		}
		return outcome{
			rows:      stats.Rows,
			fallbacks: stats.Fallbacks,
			summary:   fmt.Sprintf("Wrote %d rows", stats.Rows),
		}, nil
	})
}

func (s *pipelineService) Aggregate(ctx context.Context, date partition.Date) (*models.StageResult, error) {
	videosSrc := s.containers.Address(partition.Gold, partition.Videos, date)
	commentsSrc := s.containers.Address(partition.Gold, partition.Comments, date)
	dst := s.containers.Address(partition.Gold, partition.Final, date)

	return s.runStage(ctx, StageAggregate, partition.Final, date, dst, func(ctx context.Context) (outcome, error) {
		var videos, comments aggregate.Items
		if err := storage.ReadJSON(ctx, s.storage, videosSrc, &videos); err != nil {
			return outcome{}, err
		}
		if err := storage.ReadJSON(ctx, s.storage, commentsSrc, &comments); err != nil {
			return outcome{}, err
		}

		kpis := aggregate.Compute(date, videos, comments, s.now())
		if err := storage.WriteJSON(ctx, s.storage, dst, kpis); err != nil {
			return outcome{}, err
		}
		return outcome{
			rows:    kpis.TotalVideos + kpis.TotalComments,
			summary: "Wrote final KPIs",
		}, nil
	})
}

// RunStage dispatches one stage by name. Comment ingestion run this way pulls
// comments for the videos already in the day's bronze video document.
func (s *pipelineService) RunStage(ctx context.Context, stage Stage, entity partition.Entity, date partition.Date) (*models.StageResult, error) {
	switch {
	case stage == StageIngest && entity == partition.Videos:
		return s.IngestVideos(ctx, date)
	case stage == StageIngest && entity == partition.Comments:
		return s.ingestCommentsForVideos(ctx, date)
	case stage == StageClean && entity == partition.Videos:
		return s.CleanVideos(ctx, date)
	case stage == StageClean && entity == partition.Comments:
		return s.CleanComments(ctx, date)
	case stage == StageEnrich && entity == partition.Videos:
		return s.EnrichVideos(ctx, date)
	case stage == StageEnrich && entity == partition.Comments:
		return s.EnrichComments(ctx, date)
	case stage == StageAggregate && (entity == partition.Final || entity == ""):
		return s.Aggregate(ctx, date)
	}
	return nil, utils.NewBadRequestError(fmt.Sprintf("Unknown stage %q for entity %q", stage, entity))
}

// pipelineOrder is the full run: upstream stages always precede their readers.
var pipelineOrder = []struct {
	stage  Stage
	entity partition.Entity
}{
	{StageIngest, partition.Videos},
	{StageIngest, partition.Comments},
	{StageClean, partition.Videos},
	{StageClean, partition.Comments},
	{StageEnrich, partition.Videos},
	{StageEnrich, partition.Comments},
	{StageAggregate, partition.Final},
}

// RunAll executes every stage in order and stops at the first failure,
// returning the results of the stages that completed.
func (s *pipelineService) RunAll(ctx context.Context, date partition.Date) ([]models.StageResult, error) {
	results := make([]models.StageResult, 0, len(pipelineOrder))
	for _, step := range pipelineOrder {
		result, err := s.RunStage(ctx, step.stage, step.entity, date)
		if err != nil {
			return results, err
		}
		results = append(results, *result)
	}
	return results, nil
}

func (s *pipelineService) GetKPIs(ctx context.Context, date partition.Date) (*models.KPIs, error) {
	var kpis models.KPIs
	loc := s.containers.Address(partition.Gold, partition.Final, date)
	if err := storage.ReadJSON(ctx, s.storage, loc, &kpis); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, utils.WrapError(http.StatusNotFound, fmt.Sprintf("No KPIs for %s", date), err)
		}
		return nil, stageError(err)
	}
	return &kpis, nil
}

func (s *pipelineService) ListRuns(ctx context.Context, filter repository.RunFilter) ([]models.StageRun, error) {
	if s.runs == nil {
		return []models.StageRun{}, nil
	}
	runs, err := s.runs.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list stage runs", "error", err)
		return nil, utils.NewInternalError("Failed to list stage runs")
	}
	return runs, nil
}

func (s *pipelineService) Partitions(ctx context.Context, layer partition.Layer, entity partition.Entity) ([]partition.Date, error) {
	container := s.containers.Address(layer, entity, partition.Date{}).Container
	dates, err := storage.Partitions(ctx, s.storage, container, entity)
	if err != nil {
		s.logger.Error("Failed to list partitions", "container", container, "entity", entity, "error", err)
		return nil, utils.NewInternalError("Failed to list partitions")
	}
	if dates == nil {
		dates = []partition.Date{}
	}
	return dates, nil
}

// stageError maps a stage failure onto the status it surfaces as.
func stageError(err error) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var (
		apiErr    *youtube.APIError
		statusErr *analyzer.StatusError
	)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return utils.WrapError(http.StatusNotFound, "Input document not found", err)
	case errors.Is(err, config.ErrMissing):
		return utils.WrapError(http.StatusInternalServerError, "Configuration error", err)
	case errors.As(err, &apiErr):
		return utils.NewUpstreamError("Catalog API request failed", err)
	case errors.As(err, &statusErr):
		return utils.NewUpstreamError("Classification service request failed", err)
	default:
		return utils.WrapError(http.StatusInternalServerError, "Stage failed", err)
	}
}
