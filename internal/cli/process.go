package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/utracetools/frametree/internal/app"
	"github.com/utracetools/frametree/pkg/maxprocs"
	"github.com/utracetools/frametree/pkg/must"
)

var (
	processConfigPath string
	processLogLevel   string

	processInput       string
	processOutput      string
	processWorkers     int
	processBatchSize   int
	processMaxFrames   uint64
	processTreeBuilder string
	processCompress    bool

	processCmd = &cobra.Command{
		Use:   "process",
		Short: "Process a trace into a filtered JSON array of frame trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := newLogger(processLogLevel)
			if err != nil {
				return err
			}
			maxprocs.Adjust(ctx, logger)

			conf := &app.Config{}
			if processConfigPath != "" {
				conf, err = app.ParseConfig(processConfigPath)
				if err != nil {
					return err
				}
			}

			if cmd.Flags().Changed("input") {
				conf.InputPath = processInput
			}
			if cmd.Flags().Changed("output") {
				conf.Output.Path = processOutput
			}
			if cmd.Flags().Changed("workers") {
				conf.Processing.WorkerCount = processWorkers
			}
			if cmd.Flags().Changed("batch-size") {
				conf.Processing.BatchSize = processBatchSize
			}
			if cmd.Flags().Changed("max-frames") {
				conf.Processing.MaxFrameCount = &processMaxFrames
			}
			if cmd.Flags().Changed("tree-builder") {
				conf.Processing.TreeBuilder = processTreeBuilder
			}
			if cmd.Flags().Changed("compress") {
				conf.Output.Compress = processCompress
			}
			conf.FillDefault()

			a, err := app.New(conf, logger)
			if err != nil {
				return err
			}

			_, err = a.Run(ctx)
			return err
		},
	}
)

func init() {
	flags := processCmd.Flags()

	flags.StringVarP(&processConfigPath, "config", "c", "", "Path to yaml config")
	must.Must(processCmd.MarkFlagFilename("config"))

	flags.StringVarP(&processInput, "input", "i", "", "Path to the trace file (.csv, optionally zstd-compressed)")
	flags.StringVarP(&processOutput, "output", "o", "", "Path to the JSON output file")
	flags.IntVar(&processWorkers, "workers", 0, "Concurrent frame pipelines (0 = autodetect, 1 = inline)")
	flags.IntVar(&processBatchSize, "batch-size", 0, "Frames in flight per scheduler batch")
	flags.Uint64Var(&processMaxFrames, "max-frames", 0, "Stop after this many frames (0 = all)")
	flags.StringVar(&processTreeBuilder, "tree-builder", "", "Tree reconstruction algorithm: stack or interval")
	flags.BoolVar(&processCompress, "compress", false, "Compress the output with zstd")

	flags.StringVar(&processLogLevel, "log-level", "info", "Logging level {debug, info, warn, error}")

	rootCmd.AddCommand(processCmd)
}
