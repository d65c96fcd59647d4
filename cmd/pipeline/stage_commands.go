package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
	"github.com/BerylCAtieno/youtube-medallion/internal/services"
)

// runStageCommand wraps one stage invocation with the run lock and prints
// its one-line summary.
func runStageCommand(cmd *cobra.Command, ctx *commandContext, run func(svc services.PipelineService, date partition.Date) (*models.StageResult, error)) error {
	svc, err := ctx.pipeline()
	if err != nil {
		return err
	}
	date, err := ctx.date(svc)
	if err != nil {
		return err
	}

	return ctx.withLock(func() error {
		result, err := run(svc, date)
		if err != nil {
			return err
		}
		if ctx.jsonOutput {
			return writeJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		return nil
	})
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Pull catalog data into bronze",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "videos",
		Short: "Ingest the channel's latest uploads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageCommand(cmd, ctx, func(svc services.PipelineService, date partition.Date) (*models.StageResult, error) {
				return svc.IngestVideos(cmd.Context(), date)
			})
		},
	})

	var videoIDs []string
	var perVideo int
	comments := &cobra.Command{
		Use:   "comments",
		Short: "Ingest top-level comments (defaults to the videos in the day's bronze document)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageCommand(cmd, ctx, func(svc services.PipelineService, date partition.Date) (*models.StageResult, error) {
				if len(videoIDs) == 0 {
					return svc.RunStage(cmd.Context(), services.StageIngest, partition.Comments, date)
				}
				req := models.IngestCommentsRequest{VideoIDs: videoIDs}
				if cmd.Flags().Changed("max-per-video") {
					req.MaxCommentsPerVideo = &perVideo
				}
				return svc.IngestComments(cmd.Context(), date, req)
			})
		},
	}
	comments.Flags().StringSliceVar(&videoIDs, "video-id", nil, "Video identifier to pull comments for (repeatable)")
	comments.Flags().IntVar(&perVideo, "max-per-video", 50, "Comments per video, capped at 100")
	cmd.AddCommand(comments)

	return cmd
}

// newEntityStageCommand builds "<stage> videos|comments".
func newEntityStageCommand(ctx *commandContext, stage services.Stage, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(stage),
		Short: short,
	}

	for _, entity := range []partition.Entity{partition.Videos, partition.Comments} {
		entity := entity
		cmd.AddCommand(&cobra.Command{
			Use:   string(entity),
			Short: fmt.Sprintf("%s %s", stage, entity),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runStageCommand(cmd, ctx, func(svc services.PipelineService, date partition.Date) (*models.StageResult, error) {
					return svc.RunStage(cmd.Context(), stage, entity, date)
				})
			},
		})
	}

	return cmd
}

func newAggregateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Compute the day's KPIs from the gold documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStageCommand(cmd, ctx, func(svc services.PipelineService, date partition.Date) (*models.StageResult, error) {
				return svc.Aggregate(cmd.Context(), date)
			})
		},
	}
}

func newRunAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run-all",
		Short: "Run every stage in order for one partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.pipeline()
			if err != nil {
				return err
			}
			date, err := ctx.date(svc)
			if err != nil {
				return err
			}

			return ctx.withLock(func() error {
				results, err := svc.RunAll(cmd.Context(), date)
				if ctx.jsonOutput {
					if jsonErr := writeJSON(cmd, results); jsonErr != nil {
						return jsonErr
					}
				} else {
					for _, r := range results {
						fmt.Fprintln(cmd.OutOrStdout(), r.Message)
					}
				}
				if err != nil {
					return fmt.Errorf("pipeline stopped after %d completed stages: %w", len(results), err)
				}
				return nil
			})
		},
	}
}
