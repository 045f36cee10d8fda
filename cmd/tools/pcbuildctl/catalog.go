package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pcbuild-service/internal/catalog"
	"pcbuild-service/internal/common/config"
	"pcbuild-service/internal/common/database"
	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/models"
	"pcbuild-service/internal/resolver"
)

var (
	importFrom string
	importTo   string
	statsFrom  string
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Import and inspect product catalogs",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a catalog file into Postgres and/or Elasticsearch",
	Example: `  pcbuildctl catalog import --from configs/catalog.sample.json --to postgres
  pcbuildctl catalog import --from kaspi.json --to all`,
	RunE: runCatalogImport,
}

var catalogStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print product count, price bounds and per-category coverage",
	RunE:  runCatalogStats,
}

func init() {
	catalogImportCmd.Flags().StringVar(&importFrom, "from", "", "catalog file (.json or .yaml)")
	catalogImportCmd.Flags().StringVar(&importTo, "to", "all", "target store: postgres, elasticsearch or all")
	_ = catalogImportCmd.MarkFlagRequired("from")

	catalogStatsCmd.Flags().StringVar(&statsFrom, "from", "", "catalog file; defaults to the configured source")

	catalogCmd.AddCommand(catalogImportCmd, catalogStatsCmd)
}

func importTargets(to string) (postgres, elastic bool, err error) {
	switch strings.ToLower(strings.TrimSpace(to)) {
	case "postgres":
		return true, false, nil
	case "elasticsearch", "es":
		return false, true, nil
	case "all", "":
		return true, true, nil
	default:
		return false, false, fmt.Errorf("unknown import target %q", to)
	}
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	toPostgres, toES, err := importTargets(importTo)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Validate the file through Catalog before touching any store.
	cat, err := catalog.Load(ctx, catalog.NewFileLoader(importFrom))
	if err != nil {
		return err
	}
	products := cat.Products()
	zapLog.Info("catalog file read", zap.String("path", importFrom), zap.Int("products", len(products)))

	g, gctx := errgroup.WithContext(ctx)
	if toPostgres {
		g.Go(func() error {
			n, err := importPostgres(gctx, cfg, products)
			if err != nil {
				return fmt.Errorf("postgres import: %w", err)
			}
			zapLog.Info("postgres import done", zap.Int("rows", n), zap.String("table", cfg.Catalog.Table))
			return nil
		})
	}
	if toES {
		g.Go(func() error {
			n, err := importElasticsearch(gctx, cfg, products)
			if err != nil {
				return fmt.Errorf("elasticsearch import: %w", err)
			}
			zapLog.Info("elasticsearch import done", zap.Int("documents", n), zap.String("index", cfg.Catalog.Index))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return invalidateSnapshot(ctx, cfg)
}

func importPostgres(ctx context.Context, cfg *config.Config, products []models.Product) (int, error) {
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return 0, err
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		return 0, err
	}

	store, err := catalog.NewPostgresStore(pg.DB, cfg.Catalog.Table)
	if err != nil {
		return 0, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	return store.Upsert(ctx, products)
}

func importElasticsearch(ctx context.Context, cfg *config.Config, products []models.Product) (int, error) {
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return 0, err
	}
	if err := es.Ping(ctx); err != nil {
		return 0, err
	}
	return catalog.NewElasticsearchStore(es.Client, cfg.Catalog.Index).Index(ctx, products)
}

// invalidateSnapshot drops the Redis catalog snapshot so the service reloads
// the imported products on its next start.
func invalidateSnapshot(ctx context.Context, cfg *config.Config) error {
	if cfg.Catalog.CacheTTL <= 0 || cfg.Database.Redis.Address == "" {
		return nil
	}
	rc := database.NewRedis(cfg.Database.Redis)
	defer rc.Close()

	cached := catalog.NewCachedLoader(nil, rc.Client, cfg.Catalog.CacheKey, 0, logger.NewZapAdapter(zapLog))
	if err := cached.Invalidate(ctx); err != nil {
		zapLog.Warn("catalog snapshot not invalidated", zap.Error(err))
		return nil
	}
	zapLog.Info("catalog snapshot invalidated", zap.String("key", cfg.Catalog.CacheKey))
	return nil
}

func runCatalogStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		loader   catalog.Loader
		keywords map[models.Category][]string
	)
	if statsFrom != "" {
		loader = catalog.NewFileLoader(statsFrom)
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l, err := configuredLoader(ctx, cfg)
		if err != nil {
			return err
		}
		loader = l
		keywords = make(map[models.Category][]string)
		for name, kws := range cfg.Negotiation.CategoryKeywords {
			keywords[models.Category(name)] = kws
		}
	}

	cat, err := catalog.Load(ctx, loader)
	if err != nil {
		return err
	}
	stats := cat.Stats(resolver.NewCategoryFilter(keywords).Coverage)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func configuredLoader(ctx context.Context, cfg *config.Config) (catalog.Loader, error) {
	switch cfg.Catalog.Source {
	case "postgres":
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		return catalog.NewPostgresStore(pg.DB, cfg.Catalog.Table)
	case "elasticsearch":
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return nil, err
		}
		return catalog.NewElasticsearchStore(es.Client, cfg.Catalog.Index), nil
	default:
		return catalog.NewFileLoader(cfg.Catalog.Path), nil
	}
}
