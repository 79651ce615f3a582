package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/flame/internal/chem"
	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Reaction bool
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit <smiles>...",
		Short: "Submit species or reactions and show their status",
		Long: `Submit one or more SMILES strings. Each submission is tracked in the
status table: Submitted, then Complete or Error with the backend's message.

A SMILES containing ">>" is submitted as a reaction; --reaction forces it.`,
		Example: `  flame submit CCO
  flame submit "C.[OH]>>[CH3].O"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.authenticate(ctx); err != nil {
					return err
				}
				for _, smi := range args {
					in := ir.PostSubmission{Smiles: smi, IsReaction: opts.Reaction || chem.IsReactionSmiles(smi)}
					if err := s.run(ctx, in); err != nil {
						return err
					}
				}
				return s.finish(state.SliceSubmissions)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Reaction, "reaction", false, "submit as reactions")
	return cmd
}

// StageOptions holds flags for the stage command.
type StageOptions struct {
	*RootOptions
	Submit bool
}

// NewStageCommand creates the stage command.
func NewStageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stage <smiles>...",
		Short: "Stage species for a batch submission",
		Long: `Stage species, preview them, and with --submit post the whole list in
one batch request.

The species listing is fetched first so staged structures the catalog
already knows are previewed with their formula.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.run(ctx, ir.GetSpecies{}); err != nil {
					return err
				}
				for _, smi := range args {
					if err := s.run(ctx, ir.StageSpecies{Smiles: smi}); err != nil {
						return err
					}
				}
				if !opts.Submit {
					return s.finish(state.SliceStagedSpecies)
				}
				if err := s.authenticate(ctx); err != nil {
					return err
				}
				if err := s.run(ctx, ir.PostStagedSpecies{}); err != nil {
					return err
				}
				return s.finish(state.SliceStagedSpecies, state.SliceSubmissions)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.Submit, "submit", false, "post the staged list")
	return cmd
}
