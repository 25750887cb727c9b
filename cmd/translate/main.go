/**
 * Manga Translator CLI
 *
 * Translates one page locally, or submits it to the worker queue:
 *
 *	translate -image page.png -lang jp -out ./output/page1 -text
 *	translate -image page.png -lang jp -enqueue
 *
 * Exit codes: 0 success (including "no text regions"), 1 pipeline failure,
 * 2 usage error.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/adverant/nexus/manga-translator/internal/app"
	"github.com/adverant/nexus/manga-translator/internal/config"
	"github.com/adverant/nexus/manga-translator/internal/errors"
	"github.com/adverant/nexus/manga-translator/internal/language"
	"github.com/adverant/nexus/manga-translator/internal/processor"
	"github.com/adverant/nexus/manga-translator/internal/queue"
	"github.com/adverant/nexus/manga-translator/internal/storage"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	image   string
	lang    string
	out     string
	text    bool
	enqueue bool
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	opts := &options{}
	fs.StringVar(&opts.image, "image", "", "path of the page image (required)")
	fs.StringVar(&opts.lang, "lang", "", "source language: "+codes()+" (default DEFAULT_SOURCE_LANG)")
	fs.StringVar(&opts.out, "out", "", "output directory (default OUTPUT_DIR/<job id>)")
	fs.BoolVar(&opts.text, "text", false, "print the paired text report")
	fs.BoolVar(&opts.enqueue, "enqueue", false, "submit the page to the worker queue instead of running it here")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.image == "" {
		fs.Usage()
		return nil, fmt.Errorf("-image is required")
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.lang != "" {
		if _, ok := language.Lookup(opts.lang); !ok {
			return nil, fmt.Errorf("unknown language %q (available: %s)", opts.lang, codes())
		}
	}
	return opts, nil
}

func codes() string {
	var s string
	for i, l := range language.Supported() {
		if i > 0 {
			s += ", "
		}
		s += l.Code
	}
	return s
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	if opts.lang == "" {
		opts.lang = cfg.DefaultSourceLang
	}

	data, err := os.ReadFile(opts.image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Cannot read %s: %v\n", opts.image, err)
		return exitUsage
	}

	jobID := uuid.New().String()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProcessingTimeoutDuration())
	defer cancel()

	if opts.enqueue {
		return enqueue(ctx, cfg, &queue.JobPayload{
			JobID:      jobID,
			Filename:   filepath.Base(opts.image),
			SourceLang: opts.lang,
			FileBuffer: data,
			FileSize:   int64(len(data)),
		})
	}

	pipeline, err := app.NewPipeline(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer pipeline.Close()

	fmt.Printf("Translating %s (%s → %s)...\n", opts.image,
		language.Resolve(opts.lang).Name(), language.TargetName(cfg.TargetLang))

	result, err := pipeline.Processor.ProcessPage(ctx, &processor.ProcessRequest{
		JobID:      jobID,
		Filename:   filepath.Base(opts.image),
		SourceLang: opts.lang,
		ImageData:  data,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.UserMessage(err))
		return exitFailure
	}

	fmt.Printf("Models: %s\n", result.LoadReport)
	fmt.Printf("Detected %d text regions in %dms\n", len(result.Regions), result.Timings.TotalMs)
	if !result.Alignment.Aligned() {
		fmt.Printf("⚠️  Translator returned %d lines for %d regions; output was realigned\n",
			result.Alignment.Received, result.Alignment.Expected)
	}

	out := opts.out
	if out == "" {
		out = filepath.Join(cfg.OutputDir, jobID)
	}
	stored, err := storage.WriteResult(out, result)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.UserMessage(err))
		return exitFailure
	}

	if result.Status == processor.StatusNoRegions {
		fmt.Println(result.Message)
	}
	fmt.Printf("Cleaned page: %s\n", stored.CleanedPath)
	fmt.Printf("Preview:      %s\n", stored.PreviewPath)
	fmt.Printf("Text:         %s\n", stored.TextPath)
	if opts.text && result.Status == processor.StatusOK {
		fmt.Println()
		fmt.Print(result.Report())
	}
	return exitOK
}

func enqueue(ctx context.Context, cfg *config.Config, payload *queue.JobPayload) int {
	enqueuer, err := queue.NewEnqueuer(cfg.QueueBackend, cfg.RedisURL, cfg.QueueName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	defer enqueuer.Close()

	id, err := enqueuer.Enqueue(ctx, payload)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}
	fmt.Printf("Queued job %s on %s (%s)\n", id, cfg.QueueName, cfg.QueueBackend)
	return exitOK
}
