package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/flame/internal/chem"
	"github.com/roach88/flame/internal/ir"
	"github.com/roach88/flame/internal/state"
)

// DefaultDebounce is how long watch waits after the last write before
// uploading.
const DefaultDebounce = 200 * time.Millisecond

// GeometryOptions holds flags for the geometry subcommands.
type GeometryOptions struct {
	*RootOptions
	Reaction bool
	Debounce time.Duration
}

// geometryTarget is the parsed <conn-id> <id> <file> triple.
type geometryTarget struct {
	connID int64
	id     int64
	path   string
}

func parseGeometryArgs(args []string) (geometryTarget, error) {
	ids, err := parseIDs(args[:2])
	if err != nil {
		return geometryTarget{}, err
	}
	return geometryTarget{connID: ids[0], id: ids[1], path: args[2]}, nil
}

func (o *GeometryOptions) kind() ir.Kind {
	return ir.KindFor(o.Reaction)
}

// NewGeometryCommand creates the geometry command group.
func NewGeometryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GeometryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "geometry",
		Short: "Replace the XYZ geometry of a species or transition state",
		Long: `Upload XYZ coordinates for one stereoisomer record (or, with
--reaction, one transition state). <conn-id> is the connectivity the record
belongs to and <id> the record itself; both are shown by "species show".

The file must be a valid XYZ block: an atom count, a comment line, and one
"Symbol x y z" line per atom.`,
	}
	cmd.PersistentFlags().BoolVar(&opts.Reaction, "reaction", false, "target a reaction transition state")

	set := &cobra.Command{
		Use:   "set <conn-id> <id> <file.xyz>",
		Short: "Upload a geometry file once",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseGeometryArgs(args)
			if err != nil {
				return err
			}
			geometry, err := readGeometry(target.path)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid geometry", err)
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.authenticate(ctx); err != nil {
					return err
				}
				if err := s.run(ctx, target.intent(opts.kind(), geometry)); err != nil {
					return err
				}
				return s.finish(state.DetailsSlice(opts.kind()))
			})
		},
	}

	watch := &cobra.Command{
		Use:   "watch <conn-id> <id> <file.xyz>",
		Short: "Upload a geometry file every time it is saved",
		Long: `Watch the file and upload it after every save until interrupted.
Saves that leave an invalid XYZ block are reported and skipped.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseGeometryArgs(args)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target.path); err != nil {
				return WrapExitError(ExitCommandError, "cannot watch geometry file", err)
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *session) error {
				if err := s.authenticate(ctx); err != nil {
					return err
				}
				s.out.VerboseLog("watching %s", target.path)
				err := watchGeometry(ctx, target.path, opts.Debounce, s.logger, func(geometry string) error {
					if err := s.run(ctx, target.intent(opts.kind(), geometry)); err != nil {
						return err
					}
					return s.render(state.DetailsSlice(opts.kind()))
				})
				if err != nil {
					return WrapExitError(ExitCommandError, "watch failed", err)
				}
				return nil
			})
		},
	}
	watch.Flags().DurationVar(&opts.Debounce, "debounce", DefaultDebounce, "quiet period after a write before uploading")

	cmd.AddCommand(set, watch)
	return cmd
}

func (g geometryTarget) intent(kind ir.Kind, geometry string) ir.UpdateItemGeometry {
	return ir.UpdateItemGeometry{ID: g.id, ConnID: g.connID, Geometry: geometry, Kind: kind}
}

// readGeometry reads an XYZ file and checks that it parses.
func readGeometry(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if _, err := chem.ParseXYZ(string(data)); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return string(data), nil
}

// watchGeometry calls upload with the file's contents each time path is
// written, once writes have been quiet for debounce, until ctx ends. The
// parent directory is watched so editors that save by renaming a temporary
// file are still seen. Invalid contents and upload errors are logged and
// the watch continues.
func watchGeometry(ctx context.Context, path string, debounce time.Duration, logger *zap.Logger, upload func(geometry string) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || name != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			geometry, err := readGeometry(target)
			if err != nil {
				logger.Warn("geometry skipped", zap.String("path", target), zap.Error(err))
				continue
			}
			if err := upload(geometry); err != nil {
				logger.Warn("geometry upload failed", zap.String("path", target), zap.Error(err))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.String("path", target), zap.Error(err))
		}
	}
}
