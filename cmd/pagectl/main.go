// Command pagectl is an operator tool for the page pipeline: it decodes pages fetched
// from the API, renders documents offline into a page store and stamps watermarks.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"docvault/internal/config"
	"docvault/internal/delivery"
	"docvault/internal/logger"
	"docvault/internal/model"
	"docvault/internal/pagestore"
	"docvault/internal/render"
	"docvault/internal/watermark"
)

const usage = `usage: pagectl <command> [flags]

commands:
  decode   reverse the delivery obfuscation of a fetched page
  render   convert a PDF or DOCX into page images under a store root
  stamp    apply a watermark to a PNG or JPEG image
`

// newRunner is replaced in tests.
var newRunner = func() render.CommandRunner { return &render.ExecRunner{WaitDelay: 5 * time.Second} }

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"), time.UTC)
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug("maxprocs", logger.Fields{"detail": fmt.Sprintf(format, args...)})
	}))
	defer undo()
	if err != nil {
		logger.Warn("maxprocs_failed", logger.Fields{"error": err})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "decode":
		err = decode(args[1:], stderr)
	case "render":
		err = renderDocument(ctx, args[1:], stdout, stderr)
	case "stamp":
		err = stamp(args[1:], stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, pflag.ErrHelp):
		return 0
	default:
		fmt.Fprintf(stderr, "pagectl %s: %v\n", args[0], err)
		return 1
	}
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func decode(args []string, stderr io.Writer) error {
	fs := newFlagSet("decode", stderr)
	in := fs.StringP("in", "i", "", "obfuscated page as returned by the API")
	out := fs.StringP("out", "o", "", "where to write the decoded image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("--in and --out are required")
	}

	b, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, delivery.Decode(b), 0o644)
}

func stamp(args []string, stderr io.Writer) error {
	fs := newFlagSet("stamp", stderr)
	in := fs.StringP("in", "i", "", "source image")
	out := fs.StringP("out", "o", "", "where to write the stamped PNG")
	text := fs.String("text", "", "watermark text, overrides the reader flags")
	name := fs.String("name", "", "reader name")
	user := fs.String("user", "", "reader id")
	address := fs.String("address", "", "reader address")
	date := fs.String("date", "", "watermark date as YYYY-MM-DD, today when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("--in and --out are required")
	}

	now := time.Now()
	if *date != "" {
		d, err := time.Parse(time.DateOnly, *date)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		now = d
	}

	mark := *text
	if mark == "" {
		if *name == "" && *user == "" && *address == "" {
			mark = watermark.PreviewText(now)
		} else {
			mark = watermark.ReaderText(*name, *user, *address, now)
		}
	}

	src, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	stamped, err := watermark.Stamp(src, mark)
	if err != nil {
		return err
	}
	return os.WriteFile(*out, stamped, 0o644)
}

type renderResult struct {
	ID    string `json:"id"`
	Pages int    `json:"pages"`
	Dir   string `json:"dir"`
}

func renderDocument(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Load().Render

	fs := newFlagSet("render", stderr)
	root := fs.String("root", cfg.PrivateRoot, "page store root holding original/ and rendered/")
	id := fs.String("id", "", "document id, random when empty")
	format := fs.String("format", "", "PDF or DOCX, inferred from the file name when empty")
	fs.IntVar(&cfg.DPI, "dpi", cfg.DPI, "rasterization resolution")
	fs.IntVar(&cfg.PageWorkers, "workers", cfg.PageWorkers, "pages rendered in parallel, 0 for half of GOMAXPROCS")
	fs.DurationVar(&cfg.CommandTimeout, "timeout", cfg.CommandTimeout, "limit per external tool invocation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one input file is required")
	}
	input := fs.Arg(0)

	f, ok := model.ParseFormat(*format)
	if *format == "" {
		f, ok = model.FormatFromFilename(input)
	}
	if !ok {
		return fmt.Errorf("%w: %q", render.ErrUnsupportedFormat, f)
	}

	docID := *id
	if docID == "" {
		docID = uuid.NewString()
	}

	store, err := pagestore.New(filepath.Join(*root, "original"), filepath.Join(*root, "rendered"))
	if err != nil {
		return err
	}
	strategy, ok := render.NewStrategies(newRunner(), store, cfg)[f]
	if !ok {
		return fmt.Errorf("%w: %q", render.ErrUnsupportedFormat, f)
	}

	pages, err := strategy.Prepare(ctx, docID, input)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(renderResult{ID: docID, Pages: pages, Dir: store.Dir(docID)})
}
