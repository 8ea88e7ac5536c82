package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/utracetools/frametree/pkg/must"
	"github.com/utracetools/frametree/pkg/trace"
)

var (
	statsInput string

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Analyze a trace file without building trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(statsInput)
			if err != nil {
				return err
			}
			defer f.Close()

			reader, err := trace.NewReader(f)
			if err != nil {
				return err
			}

			stats, err := trace.CollectStats(reader)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rows:               %s\n", humanize.Comma(int64(stats.TotalRows)))
			fmt.Fprintf(out, "Frames:             %s\n", humanize.Comma(int64(stats.FrameCount)))
			fmt.Fprintf(out, "Max depth:          %d\n", stats.MaxDepth)
			fmt.Fprintf(out, "Unique timer names: %s\n", humanize.Comma(int64(stats.UniqueTimerNames)))
			fmt.Fprintf(out, "Malformed rows:     %s\n", humanize.Comma(int64(stats.MalformedRows)))
			fmt.Fprintf(out, "Avg nodes/frame:    %.1f\n", stats.AvgNodesPerFrame)
			if len(stats.TimerNamesSample) > 0 {
				fmt.Fprintln(out, "Timer name sample:")
				for _, name := range stats.TimerNamesSample {
					fmt.Fprintf(out, "  %s\n", name)
				}
			}
			return nil
		},
	}
)

func init() {
	statsCmd.Flags().StringVarP(&statsInput, "input", "i", "", "Path to the trace file")
	must.Must(statsCmd.MarkFlagRequired("input"))

	rootCmd.AddCommand(statsCmd)
}
