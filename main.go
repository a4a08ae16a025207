package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryan-buckman/spacetraveling/internal/blog"
	"github.com/bryan-buckman/spacetraveling/internal/config"
	"github.com/bryan-buckman/spacetraveling/internal/database"
	"github.com/bryan-buckman/spacetraveling/internal/export"
	"github.com/bryan-buckman/spacetraveling/internal/feed"
	"github.com/bryan-buckman/spacetraveling/internal/generate"
	"github.com/bryan-buckman/spacetraveling/internal/prismic"
	"github.com/bryan-buckman/spacetraveling/internal/render"
	"github.com/bryan-buckman/spacetraveling/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "spacetraveling",
		Short:        "Server-rendered blog backed by a Prismic repository",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newBuildCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var prebuild bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the blog, generating pages on first request",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := setup()
			if err != nil {
				return err
			}
			defer app.close()

			if prebuild {
				if _, err := app.generator.Build(ctx); err != nil {
					return fmt.Errorf("prebuild: %w", err)
				}
			}
			srv := server.New(app.blog, app.generator, app.renderer, app.store, server.Options{
				FallbackWait: app.cfg.Posts.FallbackWait,
			}, app.logger)
			return srv.Start(ctx, app.cfg.Addr())
		},
	}
	cmd.Flags().BoolVar(&prebuild, "prebuild", false, "generate the listing, feed and static posts before serving")
	return cmd
}

func newBuildCmd() *cobra.Command {
	var out, bucket string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate every known page and optionally export the site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := setup()
			if err != nil {
				return err
			}
			defer app.close()

			report, err := app.generator.Build(ctx)
			if err != nil {
				return err
			}
			for _, uid := range report.Missing {
				app.logger.Warn("static path has no post", "uid", uid)
			}

			if bucket == "" {
				bucket = app.cfg.S3.Bucket
			}
			var targets []export.Target
			if out != "" {
				targets = append(targets, export.DirTarget{Root: out})
			}
			if bucket != "" {
				client, err := export.NewS3Client(ctx, app.cfg.S3.Region, app.cfg.S3.Endpoint)
				if err != nil {
					return fmt.Errorf("s3 client: %w", err)
				}
				targets = append(targets, export.NewS3Target(client, bucket, app.cfg.S3.Prefix))
			}
			for _, target := range targets {
				if _, err := export.Export(ctx, app.store, render.Static(), "static", target, app.logger); err != nil {
					return fmt.Errorf("export: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the generated site to this directory")
	cmd.Flags().StringVar(&bucket, "s3-bucket", "", "upload the generated site to this bucket (default S3_BUCKET)")
	return cmd
}

type deps struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     database.Store
	blog      *blog.Service
	renderer  *render.Renderer
	generator *generate.Generator
}

func setup() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := prismic.New(cfg.Prismic.Endpoint, cfg.Prismic.AccessToken,
		prismic.WithHTTPClient(&http.Client{Timeout: cfg.Prismic.Timeout}),
		prismic.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("content api", "endpoint", client.Endpoint())

	store, err := database.Open(cfg.Database.URL, cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("page store open", "database", store.DatabaseType())

	renderer, err := render.New(render.Site{Title: cfg.Site.Title, BaseURL: cfg.Site.BaseURL}, nil)
	if err != nil {
		store.Close()
		return nil, err
	}

	svc := blog.NewService(client, blog.Options{
		PageSize:         cfg.Listing.PageSize,
		StaticPathsLimit: cfg.Posts.StaticPathsLimit,
	}, logger)
	gen := generate.New(svc, renderer, store, generate.Options{
		MaxPages:        cfg.Listing.MaxPages,
		GenerateTimeout: cfg.Posts.GenerateTimeout,
		Feed: feed.Site{
			Title:       cfg.Site.Title,
			BaseURL:     cfg.Site.BaseURL,
			Description: cfg.Site.Description,
		},
	}, logger)

	return &deps{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		blog:      svc,
		renderer:  renderer,
		generator: gen,
	}, nil
}

func (a *deps) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("close store", "error", err)
	}
}
