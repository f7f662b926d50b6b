package main

import (
	"github.com/spf13/cobra"

	"github.com/thywilljoshua/exbank/internal/ai"
	"github.com/thywilljoshua/exbank/internal/grade"
)

func gradeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade <reference> <page> <number> <image>...",
		Short: "Grade photos of a solution attempt and record the verdict",
		Args:  cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			images := make([]ai.Image, 0, len(args)-3)
			for _, p := range args[3:] {
				im, err := ai.LoadImage(p, a.cfg.Ingest.MaxImagePx)
				if err != nil {
					return err
				}
				images = append(images, im)
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

			svc := grade.NewService(st, grade.NewGrader(model, a.log), a.log)
			attempt, err := svc.Submit(ctx, key, images)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), attempt)
		},
	}
	return cmd
}
