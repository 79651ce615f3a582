package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
)

// NewCollectionCommand creates the collection command group. Every
// subcommand needs a logged-in session and ends by showing the refreshed
// collections.
func NewCollectionCommand(rootOpts *RootOptions) *cobra.Command {
	var reaction bool

	cmd := &cobra.Command{
		Use:     "collection",
		Aliases: []string{"collections"},
		Short:   "Manage your collections",
	}
	cmd.PersistentFlags().BoolVar(&reaction, "reaction", false, "add or remove reactions instead of species")

	// collectionRun builds a RunE that logs in, dispatches the intent
	// produced from args, and renders the collections.
	collectionRun := func(build func(args []string) (ir.Intent, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			in, err := build(args)
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.authenticate(ctx); err != nil {
					return err
				}
				if err := s.run(ctx, in); err != nil {
					return err
				}
				return s.finish(state.SliceCollections)
			})
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your collections and their members",
		Args:  cobra.NoArgs,
		RunE: collectionRun(func([]string) (ir.Intent, error) {
			return ir.GetCollections{}, nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty collection",
		Args:  cobra.ExactArgs(1),
		RunE: collectionRun(func(args []string) (ir.Intent, error) {
			return ir.PostNewCollection{Name: args[0]}, nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <coll-id> <conn-id>...",
		Short: "Add species (or --reaction reactions) to a collection",
		Args:  cobra.MinimumNArgs(2),
		RunE: collectionRun(func(args []string) (ir.Intent, error) {
			ids, err := parseIDs(args)
			if err != nil {
				return nil, err
			}
			return ir.PostCollectionItems{CollID: ids[0], ConnIDs: ids[1:], Kind: ir.KindFor(reaction)}, nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <coll-id> <conn-id>...",
		Short: "Remove species (or --reaction reactions) from a collection",
		Args:  cobra.MinimumNArgs(2),
		RunE: collectionRun(func(args []string) (ir.Intent, error) {
			ids, err := parseIDs(args)
			if err != nil {
				return nil, err
			}
			return ir.DeleteCollectionItems{CollID: ids[0], ConnIDs: ids[1:], Kind: ir.KindFor(reaction)}, nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <coll-id>",
		Short: "Delete a collection",
		Args:  cobra.ExactArgs(1),
		RunE: collectionRun(func(args []string) (ir.Intent, error) {
			ids, err := parseIDs(args)
			if err != nil {
				return nil, err
			}
			return ir.DeleteCollection{CollID: ids[0]}, nil
		}),
	})

	return cmd
}
