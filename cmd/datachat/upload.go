package main

import (
	"github.com/spf13/cobra"
)

func newUploadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a workbook and print its table id and sheet summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, opts, args[0])
		},
	}
}

func runUpload(cmd *cobra.Command, opts *rootOptions, path string) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, stderrLogger(cmd.ErrOrStderr(), cfg))
	if err != nil {
		return err
	}
	defer a.Close()

	return a.bind(cmd.Context(), a.newPrinter(cmd.OutOrStdout()), path)
}
