package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
)

// ListOptions holds flags for the list subcommands.
type ListOptions struct {
	*RootOptions
	Formula string
	Partial bool
}

// NewItemsCommand creates the species or reactions command group. name is
// "species" or "reactions".
func NewItemsCommand(rootOpts *RootOptions, name string) *cobra.Command {
	kind := ir.KindSpecies
	if name == "reactions" {
		kind = ir.KindReaction
	}

	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Browse %s", name),
	}
	cmd.AddCommand(newListCommand(rootOpts, kind))
	cmd.AddCommand(newShowCommand(rootOpts, kind))
	cmd.AddCommand(newDeleteCommand(rootOpts, kind))
	return cmd
}

func newListCommand(rootOpts *RootOptions, kind ir.Kind) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List summaries, optionally filtered by formula",
		Example: `  flame species list
  flame species list --formula H2O
  flame reactions list --formula CH --partial`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				q := ir.Query{Formula: opts.Formula, Partial: opts.Partial}
				if err := s.run(ctx, ir.ListIntent(kind, q)); err != nil {
					return err
				}
				return s.finish(state.SummariesSlice(kind))
			})
		},
	}
	cmd.Flags().StringVar(&opts.Formula, "formula", "", "formula to search for")
	cmd.Flags().BoolVar(&opts.Partial, "partial", false, "match formulas containing --formula")
	return cmd
}

func newShowCommand(rootOpts *RootOptions, kind ir.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "show <conn-id>...",
		Short: "Show the stereoisomer records of connectivity IDs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				for _, id := range ids {
					if err := s.run(ctx, ir.GetDetails{ConnID: id, Kind: kind}); err != nil {
						return err
					}
				}
				return s.finish(state.DetailsSlice(kind))
			})
		},
	}
}

func newDeleteCommand(rootOpts *RootOptions, kind ir.Kind) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conn-id>",
		Short: "Delete a connectivity (admin only) and show the refreshed listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.authenticate(ctx); err != nil {
					return err
				}
				if err := s.run(ctx, ir.DeleteItem{ConnID: ids[0], Kind: kind}); err != nil {
					return err
				}
				return s.finish(state.SummariesSlice(kind))
			})
		},
	}
}

// parseIDs accepts plain or #-prefixed positive integers.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(strings.TrimPrefix(a, "#"), 10, 64)
		if err != nil || id <= 0 {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", a))
		}
		ids = append(ids, id)
	}
	return ids, nil
}
