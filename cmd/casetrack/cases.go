package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpggio/casetrack/internal/domain/testcase"
	"github.com/rpggio/casetrack/internal/replica"
	"github.com/spf13/cobra"
)

func newImportCmd(load settingsLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "import <code> <file.json>",
		Short: "Append test cases from a JSON file",
		Long: `Append test cases to a session. The file holds a JSON array of records, or an
object with the array under "testCases". Every record is validated before any is added.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raws, err := readRawFile(args[1])
			if err != nil {
				return err
			}
			return withSession(cmd, load, args[0], func(ctx context.Context, a *app) error {
				added, err := a.manager.AppendCases(ctx, raws)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %d test cases\n", len(added))
				return nil
			})
		},
	}
}

func newSetCmd(load settingsLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "set <code> <case> <field=value>...",
		Short: "Update fields of one test case",
		Long: `Update fields of a test case, addressed by its id or its caseId.
All values are applied together, so a move to Failed may set comments and evidence in the same call:

  casetrack set ABC123 TC-7 status=Failed comments="500 on submit" evidence=run-42.png`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			return withSession(cmd, load, args[0], func(ctx context.Context, a *app) error {
				id, err := resolveCase(a.manager.Cases(), args[1])
				if err != nil {
					return err
				}
				return a.manager.UpdateFields(ctx, id, values)
			})
		},
	}
}

func newRemoveCmd(load settingsLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <code> <case>",
		Short: "Delete one test case",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, load, args[0], func(ctx context.Context, a *app) error {
				id, err := resolveCase(a.manager.Cases(), args[1])
				if err != nil {
					return err
				}
				return a.manager.DeleteCase(ctx, id)
			})
		},
	}
}

func newClearCmd(load settingsLoader) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear <code>",
		Short: "Delete every test case in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("%w: clear removes every test case; pass --yes to confirm", errUsage)
			}
			return withSession(cmd, load, args[0], func(ctx context.Context, a *app) error {
				return a.manager.ClearAll(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm clearing the list")
	return cmd
}

// parseAssignments turns field=value arguments into an update.
func parseAssignments(args []string) (map[testcase.Field]string, error) {
	values := make(map[testcase.Field]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%w: expected field=value, got %q", errUsage, arg)
		}
		field, err := testcase.ParseField(name)
		if err != nil {
			return nil, err
		}
		if field == testcase.FieldStatus {
			status, err := testcase.ParseStatus(value)
			if err != nil {
				return nil, err
			}
			value = string(status)
		}
		values[field] = value
	}
	return values, nil
}

// resolveCase finds a case by id, then by caseId. A caseId shared by
// several cases is ambiguous.
func resolveCase(cases []testcase.TestCase, ref string) (string, error) {
	var matches []string
	for _, tc := range cases {
		if tc.ID == ref {
			return tc.ID, nil
		}
		if strings.EqualFold(tc.CaseID, ref) {
			matches = append(matches, tc.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", replica.ErrCaseNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: caseId %s matches %d test cases, use the id", errUsage, ref, len(matches))
	}
}
