package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldsarchive/talkscraper/internal/artifacts"
	"github.com/ldsarchive/talkscraper/internal/recovery"
	"github.com/ldsarchive/talkscraper/internal/scraper"
)

func newRestoreCmd() *cobra.Command {
	var language string
	var conference string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Rebuilds content rows from saved talk files",
		Long: `Scans the saved talk files and rebuilds the content table from them.
Useful after losing or corrupting the state database. Files that no longer
pass validation are reported and skipped. With --dry-run nothing is
written.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			dir := instance.ArtifactDir()
			if dir == "" {
				return errors.New("artifact files are disabled in the configuration")
			}

			opts := recovery.Options{Period: conference, DryRun: dryRun}
			if language != "" {
				locale, err := scraper.ParseLocale(language)
				if err != nil {
					return err
				}
				opts.Locale = locale
			}
			if conference != "" {
				if _, err := scraper.ParsePeriodToken(conference); err != nil {
					return fmt.Errorf("--conference: %w", err)
				}
			}

			r := recovery.New(instance.Store(), artifacts.NewReader(dir), nil, instance.Logger())
			report, err := r.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, restored %d, skipped %d\n",
				report.Scanned, report.Restored, report.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "restrict to one locale (eng or spa)")
	cmd.Flags().StringVar(&conference, "conference", "", "restrict to one conference (YYYYMM)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be restored without writing")
	return cmd
}
