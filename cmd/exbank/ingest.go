package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/exbank/internal/document"
	"github.com/thywilljoshua/exbank/internal/ingest"
)

func ingestCmd(a *app) *cobra.Command {
	var marker string
	var dpi int
	var workDir string
	var maxLevel int
	var tocPages int
	var tocOffset int
	var quiet bool

	cmd := &cobra.Command{
		Use:   "ingest <pdf>...",
		Short: "Extract the exercises of one or more PDFs into the database",
		Long: "Pages carrying the exercise marker (every page when none does) are rendered and sent to the model.\n" +
			"Pages already ingested for the same document are skipped, so rerunning only processes what is new or failed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Ingest
			flags := cmd.Flags()
			if flags.Changed("marker") {
				cfg.Marker = marker
			}
			if flags.Changed("dpi") {
				cfg.DPI = dpi
			}
			if flags.Changed("work-dir") {
				cfg.WorkDir = workDir
			}
			if flags.Changed("max-heading-level") {
				cfg.MaxHeadingLevel = maxLevel
			}
			if flags.Changed("toc-pages") {
				cfg.ToCPages = tocPages
			}
			if flags.Changed("toc-offset") {
				cfg.ToCPageOffset = tocOffset
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			model, err := a.newModel(ctx)
			if err != nil {
				return err
			}

			opts := ingest.Options{
				Marker:          cfg.Marker,
				MaxHeadingLevel: cfg.MaxHeadingLevel,
				Document: document.Options{
					WorkDir:       cfg.WorkDir,
					DPI:           cfg.DPI,
					MaxImagePx:    cfg.MaxImagePx,
					ToCPages:      cfg.ToCPages,
					ToCPageOffset: cfg.ToCPageOffset,
				},
			}
			if !quiet {
				out := cmd.ErrOrStderr()
				opts.Progress = func(ev ingest.PageEvent) {
					status := fmt.Sprintf("%d stored", ev.Stored)
					if ev.Err != nil {
						status = "failed: " + ev.Err.Error()
					}
					fmt.Fprintf(out, "[%d/%d] %s page %d: %s\n", ev.Done, ev.Total, ev.Reference, ev.Page, status)
				}
			}
			coord := ingest.NewCoordinator(st, model, opts, a.log)

			results := make([]ingest.Result, 0, len(args))
			for _, path := range args {
				res, err := coord.IngestFile(ctx, path)
				results = append(results, res)
				if err != nil {
					_ = printJSON(cmd.OutOrStdout(), results)
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				if res.Stored == 0 {
					a.log.Info("no new exercises", "reference", res.Reference)
				}
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&marker, "marker", ingest.DefaultMarker, "text that marks exercise pages")
	cmd.Flags().IntVar(&dpi, "dpi", 150, "render resolution for pages sent to the model")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "directory for cached page renders (default: OS temp dir)")
	cmd.Flags().IntVar(&maxLevel, "max-heading-level", 1, "deepest table of contents level used for tags (0 = chapters only)")
	cmd.Flags().IntVar(&tocPages, "toc-pages", 16, "scan up to N early pages for a printed table of contents")
	cmd.Flags().IntVar(&tocOffset, "toc-offset", 0, "added to printed page numbers to get PDF page indexes")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not report per page progress")
	return cmd
}
