package main

import (
	"github.com/spf13/cobra"

	"github.com/thywilljoshua/exbank/internal/exercise"
)

func exercisesCmd(a *app) *cobra.Command {
	var refs []string
	var tags []string
	var statuses []string

	cmd := &cobra.Command{
		Use:   "exercises",
		Short: "List exercises with their attempt summary",
		Long: "Values of one flag are alternatives, different flags must all match.\n" +
			"Statuses: not_attempted, attempted, correct, incorrect.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := exercise.Filter{References: refs, Tags: tags}
			for _, s := range statuses {
				st, err := exercise.ParseStatus(s)
				if err != nil {
					return err
				}
				f.Statuses = append(f.Statuses, st)
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			list, err := st.Exercises(ctx, f)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringSliceVarP(&refs, "reference", "r", nil, "document reference (repeatable)")
	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "tag substring, case insensitive (repeatable)")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "attempt status (repeatable)")
	return cmd
}

func attemptsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attempts <reference> <page> <number>",
		Short: "Show the attempt history of an exercise, newest first",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			if _, err := st.Exercise(ctx, key); err != nil {
				return err
			}
			history, err := st.Attempts(ctx, key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), history)
		},
	}
}

func tagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			tags, err := st.Tags(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tags)
		},
	}
}

func referencesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "references",
		Short: "List the ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()
			refs, err := st.References(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), refs)
		},
	}
}
