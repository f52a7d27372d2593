package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		prefix     string
		maxObjects int
		workers    int
		withRows   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process one batch of transcripts and print the batch report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("prefix") {
				a.cfg.SourcePrefix = prefix
			}
			if cmd.Flags().Changed("max") {
				a.cfg.MaxObjects = maxObjects
			}
			if cmd.Flags().Changed("workers") {
				a.cfg.WorkerCount = workers
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			c, err := build(a.cfg, a.log)
			if err != nil {
				a.log.WithError(err).Error("build pipeline")
				return err
			}
			defer func() {
				if err := c.sink.Close(); err != nil {
					a.log.WithError(err).Error("close sink")
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep, runErr := c.runner.Run(ctx)
			if !withRows {
				rep.Results = nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return err
			}
			if runErr != nil {
				a.log.WithError(runErr).Error("batch ended early")
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only process keys under this prefix")
	cmd.Flags().IntVar(&maxObjects, "max", 0, "maximum transcripts in this batch (0 = no cap)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent call pipelines")
	cmd.Flags().BoolVar(&withRows, "with-rows", false, "include per-call records in the report")
	return cmd
}
