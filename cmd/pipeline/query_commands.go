package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/youtube-medallion/internal/models"
	"github.com/BerylCAtieno/youtube-medallion/internal/partition"
	"github.com/BerylCAtieno/youtube-medallion/internal/repository"
)

func newKPIsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "kpis",
		Short: "Show the KPIs of a partition",
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

			kpis, err := svc.GetKPIs(cmd.Context(), date)
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, kpis)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "KPIs for %s (generated %s)\n", kpis.IngestDate, kpis.GeneratedAt.Format("2006-01-02 15:04:05Z07:00"))
			fmt.Fprintln(out, renderTable(
				[]column{{title: "Entity"}, {title: "Sentiment"}, {title: "Count", right: true}},
				kpiRows(kpis),
			))
			return nil
		},
	}
}

// kpiRows flattens both count maps, labels sorted, each followed by a total.
func kpiRows(kpis *models.KPIs) [][]string {
	var rows [][]string
	add := func(entity string, counts map[string]int, total int) {
		labels := make([]string, 0, len(counts))
		for label := range counts {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			rows = append(rows, []string{entity, label, strconv.Itoa(counts[label])})
		}
		rows = append(rows, []string{entity, "total", strconv.Itoa(total)})
	}
	add("videos", kpis.VideoSentimentCounts, kpis.TotalVideos)
	add("comments", kpis.CommentSentimentCounts, kpis.TotalComments)
	return rows
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var filter repository.RunFilter
	var status string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded stage runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.pipeline()
			if err != nil {
				return err
			}
			if ctx.dateFlag != "" {
				date, err := partition.ParseDate(ctx.dateFlag)
				if err != nil {
					return err
				}
				filter.IngestDate = date.String()
			}
			filter.Status = models.RunStatus(status)

			runs, err := svc.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stage runs recorded")
				return nil
			}

			colorize := shouldColorize(cmd.OutOrStdout())
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.IngestDate,
					r.Stage,
					r.Entity,
					statusText(string(r.Status), colorize),
					strconv.Itoa(r.Rows),
					strconv.Itoa(r.Fallbacks),
					runDuration(r),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
				{title: "Started"},
				{title: "Date"},
				{title: "Stage"},
				{title: "Entity"},
				{title: "Status"},
				{title: "Rows", right: true},
				{title: "Fallbacks", right: true},
				{title: "Took", right: true},
			}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Stage, "stage", "", "Only runs of this stage")
	cmd.Flags().StringVar(&filter.Entity, "entity", "", "Only runs for this entity")
	cmd.Flags().StringVar(&status, "status", "", "Only runs with this status (running, succeeded, failed)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum number of runs")

	return cmd
}

func runDuration(r models.StageRun) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(10 * time.Millisecond).String()
}

func newPartitionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "partitions <bronze|silver|gold> <videos|comments|final>",
		Short: "List the ingest dates present in a layer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			layer := partition.Layer(args[0])
			switch layer {
			case partition.Bronze, partition.Silver, partition.Gold:
			default:
				return fmt.Errorf("unknown layer %q", args[0])
			}

			svc, err := ctx.pipeline()
			if err != nil {
				return err
			}
			dates, err := svc.Partitions(cmd.Context(), layer, partition.Entity(args[1]))
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, dates)
			}
			for _, d := range dates {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}
