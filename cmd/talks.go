package cmd

import (
	"github.com/spf13/cobra"
)

func newTalksCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "talks",
		Short: "Discovers talk pages in known conferences",
		Long: `Walks every conference that has not had its listing read yet and
records the individual talk pages it links to. Video-only entries are
skipped. A conference whose listing could not be fetched stays pending and
is retried on the next run.`,
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
			_, err = p.DiscoverLeaves(cmd.Context(), locales)
			return ignoreCanceled(err)
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "restrict to one locale (eng or spa)")
	return cmd
}
