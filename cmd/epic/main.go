package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dfryer1193/epicarchive/archive/application"
	"github.com/dfryer1193/epicarchive/archive/domain"
	"github.com/dfryer1193/epicarchive/archive/persistence"
	"github.com/dfryer1193/epicarchive/internal/config"
	"github.com/dfryer1193/epicarchive/shared/db/sqlite"
	"github.com/dfryer1193/epicarchive/shared/epic"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) int {
	flags := flag.NewFlagSet("epic", flag.ContinueOnError)
	flags.SetOutput(stderr)
	root := flags.String("root", "", "storage root for downloads (default $NASA_EPIC_IMAGE_STORAGE_DIRECTORY)")
	noIndex := flags.Bool("no-index", false, "do not record downloads in the archive index")
	flags.Usage = func() {
		fmt.Fprintln(stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if *root == "" {
		*root = cfg.Archive.StorageDirectory
	}

	fetcher, err := epic.NewHTTPFetcher(epic.FetcherConfig{
		BaseURL:   cfg.Catalog.BaseURL,
		UserAgent: cfg.Catalog.UserAgent,
		Timeout:   cfg.Catalog.RequestTimeout,
		Interval:  cfg.Catalog.RequestInterval,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create catalog client")
		return 1
	}

	fs := afero.NewOsFs()
	var index domain.ArchiveIndex
	if !*noIndex && flags.Arg(0) == "download" {
		database := sqlite.NewSQLiteDB(&sqlite.SQLiteConfig{Path: cfg.Database.Path})
		if err := database.Connect(); err != nil {
			log.Error().Err(err).Msg("Failed to connect to database")
			return 1
		}
		defer database.Close()
		index = persistence.NewArchiveIndex(database.DB())
	}

	service := application.NewAcquisitionService(
		epic.NewCatalog(fetcher),
		persistence.NewArchiveWriter(fetcher, fs),
		index,
	)

	c := &cli{service: service, root: *root, out: stdout}
	if err := c.execute(ctx, flags.Args()); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintln(stderr, err)
			flags.Usage()
			return 2
		}
		log.Error().Err(err).Msg("Command failed")
		return 1
	}

	return 0
}
