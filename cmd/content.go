package cmd

import (
	"github.com/spf13/cobra"
)

func newContentCmd() *cobra.Command {
	var language string
	var limit int

	cmd := &cobra.Command{
		Use:   "content",
		Short: "Extracts and validates talk content",
		Long: `Fetches every pending talk page, extracts its title, author, calling,
body and footnotes, validates the result, and commits it together with the
talk's processed flag. Talks that fail to fetch or validate stay pending.`,
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
			_, err = p.ExtractContent(cmd.Context(), locales, limit)
			return ignoreCanceled(err)
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "restrict to one locale (eng or spa)")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many talks per locale (0 = all)")
	return cmd
}

func newRunCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs all three phases back to back",
		Long: `Runs conference discovery, talk discovery, and content extraction in
order. Equivalent to invoking collect, talks, and content one after the
other with the same configuration.`,
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
			if _, err := p.Collect(cmd.Context(), locales); err != nil {
				return ignoreCanceled(err)
			}
			if _, err := p.DiscoverLeaves(cmd.Context(), locales); err != nil {
				return ignoreCanceled(err)
			}
			_, err = p.ExtractContent(cmd.Context(), locales, 0)
			return ignoreCanceled(err)
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "restrict to one locale (eng or spa)")
	return cmd
}
