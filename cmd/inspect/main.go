// Command inspect reports on the hierarchy store and the boundary files:
// what is there, what joins and what does not.
package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"sipeta-bknd/internal/app"
	"sipeta-bknd/internal/config"
	"sipeta-bknd/internal/database"
	"sipeta-bknd/internal/geofeed"
	"sipeta-bknd/internal/hierarchy"
	"sipeta-bknd/internal/inspect"
	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/models"
	"sipeta-bknd/internal/services"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	root := &cobra.Command{
		Use:           "inspect",
		Short:         "Inspect hierarchy and boundary data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newCountsCmd(cfg, logr),
		newFieldsCmd(cfg, logr),
		newDusunCmd(cfg, logr),
		newJoinCmd(cfg, logr),
		newNamesCmd(cfg, logr),
		newOperatorCmd(cfg, logr),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newCountsCmd(cfg *config.Config, logr *logger.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Print record counts per hierarchy collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := app.Open(ctx, cfg, logr)
			if err != nil {
				return err
			}
			defer deps.Close(ctx)

			counter, ok := deps.Source.(inspect.Counter)
			if !ok {
				return fmt.Errorf("hierarchy source %q cannot count records", cfg.HierarchySource)
			}
			rows, err := inspect.Counts(ctx, counter)
			if err != nil {
				return err
			}
			return inspect.PrintCounts(cmd.OutOrStdout(), rows)
		},
	}
}

func newFieldsCmd(cfg *config.Config, logr *logger.Logger) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List property keys of a boundary source",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, closeFn, err := readCollection(cmd.Context(), cfg, logr, file)
			if err != nil {
				return err
			}
			defer closeFn()
			return inspect.PrintFields(cmd.OutOrStdout(), fc)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "GeoJSON file or postgis:<table> (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDusunCmd(cfg *config.Config, logr *logger.Logger) *cobra.Command {
	var (
		xlsx    string
		perDesa bool
	)
	cmd := &cobra.Command{
		Use:   "dusun",
		Short: "Compare raw and clean dusun totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tree, closeFn, err := loadTree(ctx, cfg, logr)
			if err != nil {
				return err
			}
			defer closeFn()

			summary := tree.Dusun()
			if err := inspect.PrintDusun(cmd.OutOrStdout(), summary, perDesa); err != nil {
				return err
			}
			if xlsx != "" {
				if err := inspect.WriteDusunXLSX(xlsx, summary); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "written %s\n", xlsx)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "Also write the per-desa counts to this .xlsx file")
	cmd.Flags().BoolVar(&perDesa, "per-desa", false, "Print one row per desa")
	return cmd
}

func newJoinCmd(cfg *config.Config, logr *logger.Logger) *cobra.Command {
	var (
		levelName string
		file      string
	)
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Report boundaries and regions that fail to join at a level",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			level, ok := models.ParseLevel(levelName)
			if !ok || level == models.LevelDusun {
				return fmt.Errorf("unknown level %q", levelName)
			}

			deps, err := app.Open(ctx, cfg, logr)
			if err != nil {
				return err
			}
			defer deps.Close(ctx)

			path := file
			if path == "" {
				path = deps.GeoSources[level]
			}
			if path == "" {
				return fmt.Errorf("no boundary source configured for %s; pass --file", level)
			}

			tree, _, err := deps.Hierarchy.Load(ctx)
			if err != nil {
				return err
			}
			lr, err := deps.Feeds.LoadLevel(ctx, level, path)
			if err != nil {
				return err
			}
			return inspect.PrintJoin(cmd.OutOrStdout(), inspect.Join(tree, lr))
		},
	}
	cmd.Flags().StringVar(&levelName, "level", "", "Level to join: kabupaten, kecamatan, desa, up3, ulp (required)")
	cmd.Flags().StringVar(&file, "file", "", "Boundary source (default: the configured one for the level)")
	_ = cmd.MarkFlagRequired("level")
	return cmd
}

func newNamesCmd(cfg *config.Config, logr *logger.Logger) *cobra.Command {
	var (
		pattern   string
		levelName string
		file      string
	)
	cmd := &cobra.Command{
		Use:   "names",
		Short: "Search region names in the hierarchy and a boundary source",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return fmt.Errorf("bad pattern: %w", err)
			}
			level, ok := models.ParseLevel(levelName)
			if !ok {
				return fmt.Errorf("unknown level %q", levelName)
			}

			deps, err := app.Open(ctx, cfg, logr)
			if err != nil {
				return err
			}
			defer deps.Close(ctx)

			tree, _, err := deps.Hierarchy.Load(ctx)
			if err != nil {
				return err
			}
			var fc *geojson.FeatureCollection
			if file != "" {
				if fc, err = deps.Feeds.ReadCollection(ctx, file); err != nil {
					return err
				}
			}
			hits := inspect.SearchNames(tree, fc, deps.Aliases, level, re)
			return inspect.PrintNames(cmd.OutOrStdout(), hits)
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "Regular expression, matched case-insensitively (required)")
	cmd.Flags().StringVar(&levelName, "level", string(models.LevelKabupaten), "Level to search")
	cmd.Flags().StringVar(&file, "file", "", "Boundary source to search as well")
	_ = cmd.MarkFlagRequired("pattern")
	return cmd
}

func newOperatorCmd(cfg *config.Config, logr *logger.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage operator accounts",
	}

	var email, name, password, roles string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a local operator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required to manage operators")
			}
			db, err := database.New(cfg.DatabaseURL, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.EnsureSchema(ctx, db); err != nil {
				return err
			}

			svc := services.NewAuthService(db, nil, cfg, logr.Named("auth"))
			info, err := svc.CreateOperator(ctx, email, name, password, splitRoles(roles))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created operator %s (%s) roles=%s\n", info.Email, info.ID, strings.Join(info.Roles, ","))
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "Login email (required)")
	add.Flags().StringVar(&name, "name", "", "Display name")
	add.Flags().StringVar(&password, "password", "", "Initial password (required)")
	add.Flags().StringVar(&roles, "role", "viewer", "Comma separated roles, e.g. admin,viewer")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")

	cmd.AddCommand(add)
	return cmd
}

// loadTree builds the hierarchy without touching boundary sources.
func loadTree(ctx context.Context, cfg *config.Config, logr *logger.Logger) (*hierarchy.Tree, func(), error) {
	deps, err := app.Open(ctx, cfg, logr)
	if err != nil {
		return nil, nil, err
	}
	tree, _, err := deps.Hierarchy.Load(ctx)
	if err != nil {
		deps.Close(ctx)
		return nil, nil, err
	}
	return tree, func() { deps.Close(context.Background()) }, nil
}

// readCollection reads a boundary source. Plain files need neither the
// hierarchy store nor Postgres.
func readCollection(ctx context.Context, cfg *config.Config, logr *logger.Logger, path string) (*geojson.FeatureCollection, func(), error) {
	if !strings.HasPrefix(path, geofeed.PostGISPrefix) {
		aliases, canon, err := geofeed.LoadAliases(cfg.GeoAliasFile)
		if err != nil {
			return nil, nil, err
		}
		fc, err := geofeed.NewLoader(aliases, canon, nil, logr.Named("geofeed")).ReadCollection(ctx, path)
		return fc, func() {}, err
	}

	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("%s requires DATABASE_URL", path)
	}
	db, err := database.New(cfg.DatabaseURL, cfg)
	if err != nil {
		return nil, nil, err
	}
	aliases, canon, err := geofeed.LoadAliases(cfg.GeoAliasFile)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	fc, err := geofeed.NewLoader(aliases, canon, db, logr.Named("geofeed")).ReadCollection(ctx, path)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return fc, func() { db.Close() }, nil
}

func splitRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
