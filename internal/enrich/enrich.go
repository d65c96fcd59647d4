// Package enrich attaches a classification to every silver item. Both entity
// types share one loop: build the prompt, call the service, parse the reply
// (falling back to a neutral record when it is not JSON) and merge.
package enrich

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/BerylCAtieno/youtube-medallion/internal/analyzer"
	"github.com/BerylCAtieno/youtube-medallion/internal/metrics"
	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/utils"
)

const progressEvery = 5

// Stats summarizes one enrichment pass.
type Stats struct {
	Rows      int
	Fallbacks int
}

type Enricher struct {
	analyzer analyzer.Analyzer
	workers  int
	logger   *utils.Logger
}

// New returns an Enricher. workers <= 1 classifies strictly one item at a
// time; larger values cap the number of in-flight classification calls.
func New(a analyzer.Analyzer, workers int, logger *utils.Logger) *Enricher {
	if workers < 1 {
		workers = 1
	}
	return &Enricher{analyzer: a, workers: workers, logger: logger}
}

// entity describes how one item type is prompted, parsed and merged.
type entity[In, C, Out any] struct {
	name   string
	prompt func(In) analyzer.Prompt
	parse  func(string) (C, bool)
	merge  func(In, C) Out
}

var comments = entity[models.CleanComment, models.CommentClassification, models.EnrichedComment]{
	name: "comments",
	prompt: func(c models.CleanComment) analyzer.Prompt {
		return analyzer.CommentPrompt(c.Text)
	},
	parse: analyzer.ParseComment,
	merge: func(c models.CleanComment, cls models.CommentClassification) models.EnrichedComment {
		return models.EnrichedComment{CleanComment: c, CommentClassification: cls}
	},
}

var videos = entity[models.CleanVideo, models.VideoClassification, models.EnrichedVideo]{
	name: "videos",
	prompt: func(v models.CleanVideo) analyzer.Prompt {
		title := ""
		if v.Title != nil {
			title = *v.Title
		}
		return analyzer.VideoPrompt(title)
	},
	parse: analyzer.ParseVideo,
	merge: func(v models.CleanVideo, cls models.VideoClassification) models.EnrichedVideo {
		return models.EnrichedVideo{CleanVideo: v, VideoClassification: cls}
	},
}

// Comments classifies every comment; the result has exactly one item per input.
func (e *Enricher) Comments(ctx context.Context, items []models.CleanComment) ([]models.EnrichedComment, Stats, error) {
	return run(ctx, e, comments, items)
}

// Videos classifies every video title; the result has exactly one item per input.
func (e *Enricher) Videos(ctx context.Context, items []models.CleanVideo) ([]models.EnrichedVideo, Stats, error) {
	return run(ctx, e, videos, items)
}

func run[In, C, Out any](ctx context.Context, e *Enricher, kind entity[In, C, Out], items []In) ([]Out, Stats, error) {
	out := make([]Out, len(items))
	var fallbacks, done atomic.Int64

	classify := func(ctx context.Context, i int) error {
		content, err := e.analyzer.Complete(ctx, kind.prompt(items[i]))
		if err != nil {
			return fmt.Errorf("classify %s item %d: %w", kind.name, i+1, err)
		}

		cls, ok := kind.parse(content)
		if !ok {
			fallbacks.Add(1)
			metrics.ClassificationFallback(kind.name)
			e.logger.Warn("Classification response was not JSON, using neutral fallback",
				"entity", kind.name,
				"item", i+1)
		}
		out[i] = kind.merge(items[i], cls)

		if n := done.Add(1); n%progressEvery == 0 {
			e.logger.Info("Enrichment progress", "entity", kind.name, "processed", n, "total", len(items))
		}
		return nil
	}

	if e.workers == 1 {
		for i := range items {
			if err := classify(ctx, i); err != nil {
				return nil, Stats{}, err
			}
		}
	} else {
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers)
		for i := range items {
			i := i
			g.Go(func() error {
				return classify(gCtx, i)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, Stats{}, err
		}
	}

	return out, Stats{Rows: len(out), Fallbacks: int(fallbacks.Load())}, nil
}
