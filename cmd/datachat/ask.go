package main

import (
	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <file> <question>...",
		Short: "Upload a workbook, then ask each question in order",
		Long: "Uploads the workbook and dispatches every following argument as one question, " +
			"printing each answer. Chart answers are also written as HTML pages to the chart directory.",
		Example: `  datachat ask sales.xlsx "Show me the first 10 rows" "Show the trend over time"`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, args[0], args[1:])
		},
	}
}

func runAsk(cmd *cobra.Command, opts *rootOptions, path string, questions []string) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, stderrLogger(cmd.ErrOrStderr(), cfg))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	p := a.newPrinter(cmd.OutOrStdout())
	if err := a.bind(ctx, p, path); err != nil {
		return err
	}

	for _, q := range questions {
		entry, ok := a.ctrl.Ask(ctx, q)
		if !ok {
			a.logger.Debug("question skipped", "question", q)
			continue
		}
		p.print(ctx, entry)
	}
	return nil
}
