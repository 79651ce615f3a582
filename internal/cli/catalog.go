package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/flame/internal/catalog"
	"github.com/roach88/flame/internal/config"
	"github.com/roach88/flame/internal/ir"
)

// RouteInfo is the JSON form of one catalog route.
type RouteInfo struct {
	Op        ir.Op             `json:"op"`
	Method    string            `json:"method"`
	Path      string            `json:"path,omitempty"`
	KindPaths map[string]string `json:"kind_paths,omitempty"`
	Strategy  string            `json:"strategy"`
	Protected bool              `json:"protected"`
}

// CatalogInfo is the output of catalog check.
type CatalogInfo struct {
	Name   string      `json:"name"`
	Routes []RouteInfo `json:"routes"`
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect route catalogs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check [file.cue]",
		Short: "Compile a route catalog and list its routes",
		Long: `Compile a route catalog against the schema and list every op's
endpoint, strategy and protection. Without a file, the catalog that other
commands would use (--catalog, catalog.path, or the embedded default) is
checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(config.Options{File: rootOpts.ConfigFile, Flags: cmd.Flags()})
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load config", err)
				}
				path = cfg.Catalog.Path
			}

			cat, err := catalog.Load(path)
			if err != nil {
				return WrapExitError(ExitFailure, "catalog check failed", err)
			}

			info := describeCatalog(cat)
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr()}
			if out.JSON() {
				return out.Success(info)
			}
			return out.Success(formatCatalog(info))
		},
	})
	return cmd
}

func describeCatalog(cat *catalog.Catalog) CatalogInfo {
	info := CatalogInfo{Name: cat.Name()}
	for _, r := range cat.Routes() {
		ri := RouteInfo{
			Op:        r.Op,
			Method:    r.Method,
			Path:      r.Path,
			Strategy:  string(r.Strategy),
			Protected: r.Protected,
		}
		if len(r.KindPaths) > 0 {
			ri.KindPaths = make(map[string]string, len(r.KindPaths))
			for k, p := range r.KindPaths {
				ri.KindPaths[string(k)] = p
			}
		}
		info.Routes = append(info.Routes, ri)
	}
	return info
}

func formatCatalog(info CatalogInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Catalog %s: %d routes\n", info.Name, len(info.Routes))
	for _, r := range info.Routes {
		flags := r.Strategy
		if r.Protected {
			flags += ", protected"
		}
		fmt.Fprintf(&b, "  %-24s %-6s %s (%s)\n", r.Op, r.Method, routePath(r), flags)
	}
	return b.String()
}

func routePath(r RouteInfo) string {
	if len(r.KindPaths) == 0 {
		return r.Path
	}
	kinds := make([]string, 0, len(r.KindPaths))
	for k := range r.KindPaths {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, k+": "+r.KindPaths[k])
	}
	return strings.Join(parts, ", ")
}
