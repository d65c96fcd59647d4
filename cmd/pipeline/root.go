package main

import (
	"github.com/spf13/cobra"

	"github.com/BerylCAtieno/youtube-medallion/internal/services"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Run the YouTube medallion pipeline stages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configPath, "config", "c", "", "YAML configuration file (defaults to $MEDALLION_CONFIG)")
	flags.StringVar(&ctx.dateFlag, "date", "", "Partition date as YYYY-MM-DD (defaults to today)")
	flags.BoolVar(&ctx.jsonOutput, "json", false, "Print results as JSON")
	flags.StringVar(&ctx.lockPath, "lock", defaultLockPath(), "Lock file that serializes pipeline runs on this host")

	rootCmd.AddCommand(newIngestCommand(ctx))
	rootCmd.AddCommand(newEntityStageCommand(ctx, services.StageClean, "Clean a bronze document into silver"))
	rootCmd.AddCommand(newEntityStageCommand(ctx, services.StageEnrich, "Classify silver items into gold"))
	rootCmd.AddCommand(newAggregateCommand(ctx))
	rootCmd.AddCommand(newRunAllCommand(ctx))
	rootCmd.AddCommand(newKPIsCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newPartitionsCommand(ctx))

	return rootCmd
}
