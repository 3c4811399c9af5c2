package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/spf13/cobra"
)

func newCreateCmd(load settingsLoader) *cobra.Command {
	var (
		importFile string
		detach     bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session and watch it",
		Long: `Create a new session owned by --user, print its code and stay joined as an
editor until interrupted or idle. With --detach the command returns after creation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd)
			if err != nil {
				return err
			}

			var raws []testcase.Raw
			if importFile != "" {
				if raws, err = readRawFile(importFile); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			a := newApp(cmd, s)
			defer a.Close(context.WithoutCancel(ctx))

			code, err := a.manager.Create(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), code)

			if len(raws) > 0 {
				if _, err := a.manager.AppendCases(ctx, raws); err != nil {
					return err
				}
			}
			if detach {
				return nil
			}
			return a.watch(ctx)
		},
	}
	cmd.Flags().StringVar(&importFile, "import", "", "JSON file of test cases to load into the new session")
	cmd.Flags().BoolVar(&detach, "detach", false, "leave right after creating")
	return cmd
}

func newJoinCmd(load settingsLoader) *cobra.Command {
	var viewer bool
	cmd := &cobra.Command{
		Use:   "join <code>",
		Short: "Join a session and watch its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a := newApp(cmd, s)
			defer a.Close(context.WithoutCancel(ctx))

			if err := a.manager.Join(ctx, args[0], viewer); err != nil {
				return err
			}
			return a.watch(ctx)
		},
	}
	cmd.Flags().BoolVar(&viewer, "viewer", false, "join read-only")
	return cmd
}

// withSession joins code as an editor, runs fn and leaves.
func withSession(cmd *cobra.Command, load settingsLoader, code string, fn func(context.Context, *app) error) error {
	s, err := load(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a := newApp(cmd, s)
	defer a.Close(context.WithoutCancel(ctx))

	if err := a.manager.Join(ctx, code, false); err != nil {
		return err
	}
	return fn(ctx, a)
}

func readRawFile(path string) ([]testcase.Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	raws, err := testcase.DecodeRawJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raws, nil
}
