package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ldsarchive/talkscraper/internal/app"
	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// localesFor resolves the --language flag against the configured locales.
// Empty means every configured locale.
func localesFor(instance *app.App, flagValue string) ([]scraper.Locale, error) {
	if flagValue == "" {
		return instance.Config().Locales(), nil
	}
	locale, err := scraper.ParseLocale(flagValue)
	if err != nil {
		return nil, err
	}
	return []scraper.Locale{locale}, nil
}

func newCollectCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Discovers conference session indexes",
		Long: `Reads the archive index pages and records every conference session it
finds. Already known conferences are skipped, so the command is safe to
re-run at any time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			instance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			locales, err := localesFor(instance, language)
			if err != nil {
				return err
			}
			p, err := instance.Pipeline()
			if err != nil {
				return err
			}
			_, err = p.Collect(cmd.Context(), locales)
			return ignoreCanceled(err)
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "restrict to one locale (eng or spa)")
	return cmd
}
