// Command analyze submits one PDF to the analysis service and prints the
// rendered result as Markdown.
//
//	analyze [-naming auto|camel|snake] [-url URL] [-quiet] FILE
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dgallion1/docscope/internal/analysis"
	"github.com/dgallion1/docscope/internal/analyzer"
	"github.com/dgallion1/docscope/internal/config"
	"github.com/dgallion1/docscope/internal/gate"
	"github.com/dgallion1/docscope/internal/progress"
	"github.com/dgallion1/docscope/internal/render"
	"github.com/dgallion1/docscope/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}

	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	naming := fs.String("naming", cfg.FieldNaming, "response field naming: auto, camel or snake")
	url := fs.String("url", cfg.AnalyzerURL, "analysis service base URL")
	quiet := fs.Bool("quiet", false, "do not print progress")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: analyze [flags] FILE")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}
	cfg.FieldNaming, cfg.AnalyzerURL = *naming, *url
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 2
	}

	level, _ := cfg.SlogLevel()
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: max(level, slog.LevelWarn)}))

	cand, err := candidate(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	client, err := analyzer.NewClient(cfg, log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer client.Close()
	renderer, err := render.New(log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	deps := session.Deps{
		Gate:     gate.New(cfg.AcceptedMediaType, cfg.MaxUploadBytes),
		Analyzer: client,
		Progress: progress.New(cfg.ProgressStepDelay),
		Renderer: renderer,
	}
	if !*quiet {
		deps.OnStep = func(s progress.Step) {
			fmt.Fprintf(stderr, "[%3d%%] %s\n", s.Percent, s.Label)
		}
	}
	ctl := session.NewController("cli", deps, log)
	defer ctl.Close()

	info, err := ctl.OnFileSelected(cand)
	if err != nil {
		fmt.Fprintln(stderr, "error:", userMessage(err))
		return 1
	}
	if !*quiet {
		fmt.Fprintf(stderr, "%s (%s", info.Name, info.SizeLabel)
		if info.Pages > 0 {
			fmt.Fprintf(stderr, ", %d pages", info.Pages)
		}
		fmt.Fprintln(stderr, ")")
	}

	out, err := ctl.OnSubmit(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	if !out.OK() {
		fmt.Fprintln(stderr, "error:", out.Err.UserMessage())
		return 1
	}

	md, err := ctl.Report()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	fmt.Fprintln(stdout, md)
	return 0
}

// candidate describes a local file, with its media type detected from content.
func candidate(path string) (gate.Candidate, error) {
	st, err := os.Stat(path)
	if err != nil {
		return gate.Candidate{}, err
	}
	if st.IsDir() {
		return gate.Candidate{}, fmt.Errorf("%s is a directory", path)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return gate.Candidate{}, fmt.Errorf("detect type of %s: %w", path, err)
	}
	return gate.Candidate{
		Name:      filepath.Base(path),
		Size:      st.Size(),
		MediaType: mt.String(),
		Open:      func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

func userMessage(err error) string {
	var aerr *analysis.Error
	if errors.As(err, &aerr) {
		return aerr.UserMessage()
	}
	return err.Error()
}
