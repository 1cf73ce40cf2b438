package main

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/dfryer1193/epicarchive/archive/domain"
	"github.com/rs/zerolog/log"
)

const usage = `usage: epic [flags] <command> [args]

commands:
  list [date]                       list the images of a date
  download <target-directory> [date] download the images of a date
  dates                             list every date with images
  recent                            list the most recent images

dates are YYYY-MM-DD; the last available date is used when omitted`

var targetDirPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

type acquirer interface {
	ResolveDate(ctx context.Context, explicit string) (time.Time, error)
	ListImagesForDate(ctx context.Context, date time.Time) ([]domain.ImageRecord, error)
	ListRecentImages(ctx context.Context) ([]domain.ImageRecord, error)
	ListAvailableDates(ctx context.Context) ([]time.Time, error)
	DownloadForDateWithProgress(ctx context.Context, date time.Time, subdir string, root string, onStored func(path string)) ([]string, error)
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

type cli struct {
	service acquirer
	root    string
	out     io.Writer
}

func (c *cli) execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return &usageError{msg: "missing command"}
	}

	verb, rest := args[0], args[1:]
	switch verb {
	case "list":
		if len(rest) > 1 {
			return &usageError{msg: "list takes at most one date"}
		}
		return c.list(ctx, optionalArg(rest, 0))
	case "download":
		if len(rest) < 1 || len(rest) > 2 {
			return &usageError{msg: "download takes a target directory and an optional date"}
		}
		if !targetDirPattern.MatchString(rest[0]) {
			return &usageError{msg: fmt.Sprintf("invalid target directory %q: only letters, digits, '_', '.' and '-' are allowed", rest[0])}
		}
		return c.download(ctx, rest[0], optionalArg(rest, 1))
	case "dates":
		if len(rest) != 0 {
			return &usageError{msg: "dates takes no arguments"}
		}
		return c.dates(ctx)
	case "recent":
		if len(rest) != 0 {
			return &usageError{msg: "recent takes no arguments"}
		}
		return c.recent(ctx)
	default:
		return &usageError{msg: fmt.Sprintf("unknown command %q", verb)}
	}
}

func (c *cli) list(ctx context.Context, explicit string) error {
	date, err := c.resolve(ctx, explicit)
	if err != nil {
		return err
	}

	records, err := c.service.ListImagesForDate(ctx, date)
	if err != nil {
		return err
	}
	c.printRecords(records)
	return nil
}

func (c *cli) download(ctx context.Context, target string, explicit string) error {
	date, err := c.resolve(ctx, explicit)
	if err != nil {
		return err
	}

	paths, err := c.service.DownloadForDateWithProgress(ctx, date, target, c.root, func(path string) {
		fmt.Fprintln(c.out, path)
	})
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		log.Warn().Str("date", date.Format(domain.DateLayout)).Msg("No images found for date")
	}
	return nil
}

func (c *cli) dates(ctx context.Context) error {
	dates, err := c.service.ListAvailableDates(ctx)
	if err != nil {
		return err
	}
	for _, date := range dates {
		fmt.Fprintln(c.out, date.Format(domain.DateLayout))
	}
	return nil
}

func (c *cli) recent(ctx context.Context) error {
	records, err := c.service.ListRecentImages(ctx)
	if err != nil {
		return err
	}
	c.printRecords(records)
	return nil
}

func (c *cli) resolve(ctx context.Context, explicit string) (time.Time, error) {
	date, err := c.service.ResolveDate(ctx, explicit)
	if err != nil {
		return time.Time{}, err
	}
	if explicit == "" {
		log.Warn().Str("date", date.Format(domain.DateLayout)).Msg("No date given, using the last available date")
	}
	return date, nil
}

func (c *cli) printRecords(records []domain.ImageRecord) {
	for _, record := range records {
		fmt.Fprintf(c.out, "%s\t%s\t%s\n", record.Identifier(), record.CapturedAt().Format(domain.CapturedAtLayout), record.Caption())
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
