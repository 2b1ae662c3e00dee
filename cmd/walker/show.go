package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alvmarrod/wiki-walker/internal/experiment"
	"github.com/alvmarrod/wiki-walker/internal/stats"
	"github.com/alvmarrod/wiki-walker/internal/storage"
)

type showFlags struct {
	dbPath    string
	outputDir string
	topK      int
}

var exampleForShowCmd = `  walker show 3f1c9a52-6b1e-4d7e-9a3a-0c2f8d1e4b77
  walker show --db walker.db --output save-again <run-id>`

func newShowCmd() *cobra.Command {
	flags := &showFlags{}

	cmd := &cobra.Command{
		Use:     "show <run-id>",
		Short:   "Print the statistics of a stored run and optionally export it again",
		Example: exampleForShowCmd,
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := storage.NewStorage(flags.dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := experiment.LoadReport(store, args[0], flags.topK)
			if err != nil {
				return err
			}

			stats.Render(os.Stdout, report.Summary)

			if flags.outputDir == "" {
				return nil
			}
			if err := experiment.Export(flags.outputDir, report); err != nil {
				return err
			}
			logrus.Infof("Results written to %s", flags.outputDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.dbPath, "db", "walker.db", "sqlite database path")
	cmd.Flags().StringVarP(&flags.outputDir, "output", "o", "", "export the run's CSV files to this directory")
	cmd.Flags().IntVar(&flags.topK, "top-k", 5, "path lengths listed in the frequency table")

	return cmd
}
