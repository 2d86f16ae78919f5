package main

import (
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/pyhub-apps/docview-golang/pkg/cache"
	"github.com/pyhub-apps/docview-golang/pkg/document"
	"github.com/pyhub-apps/docview-golang/pkg/settings"
)

const usage = `Usage: docview [flags] <command> <file> [args]

Commands:
  info <file>                 page count and page sizes
  text <file>                 page text (-page selects one page)
  outline <file>              outline tree with destination pages
  search <file> <query>       matches with surrounding text
  render <file>               render a page to PNG (-o output file)

Flags:
`

// engineOptions are added to every Open; build tags may extend them
var engineOptions []document.Option

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	configPath, historyPath := defaultPaths()

	fs := flag.NewFlagSet("docview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		config   = fs.String("config", configPath, "Configuration file")
		history  = fs.String("history", historyPath, "History file")
		password = fs.String("password", "", "Password for encrypted documents")
		page     = fs.Int("page", 0, "Page number, 1-based (0 means all pages, or the last viewed page for render)")
		zoom     = fs.Float64("zoom", 1, "Zoom factor for render")
		rotate   = fs.Int("rotate", 0, "Rotation for render: 0, 90, 180 or 270")
		output   = fs.String("o", "page.png", "Output file for render")
		verbose  = fs.Bool("v", false, "Log debug messages and engine warnings to stderr")
	)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger := log.New(stderr, "", 0)
	if fs.NArg() < 2 {
		fs.Usage()
		return 2
	}
	command, path := fs.Arg(0), fs.Arg(1)
	if *rotate%90 != 0 || *rotate < 0 || *rotate > 270 {
		logger.Printf("invalid rotation %d, want 0, 90, 180 or 270", *rotate)
		return 2
	}

	cfg := settings.Open(*config, *history)

	opts := append([]document.Option{document.WithWorkers(cfg.GetInt("renderWorkers"))}, engineOptions...)
	if *verbose {
		handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, document.WithLogger(slog.New(handler)), document.WithEngineWarnings(true))
	}
	if isFlagSet(fs, "password") {
		opts = append(opts, document.WithPassword(*password))
	}

	doc, err := document.Open(path, opts...)
	if err != nil {
		logger.Printf("open %s: %v", path, err)
		return 1
	}
	defer doc.Close()

	pages, err := selectPages(doc, *page)
	if err != nil {
		logger.Print(err)
		return 1
	}

	switch command {
	case "info":
		printInfo(stdout, doc)
	case "text":
		for _, p := range pages {
			if len(pages) > 1 {
				fmt.Fprintf(stdout, "=== Page %d ===\n", p+1)
			}
			fmt.Fprintln(stdout, doc.PageText(p, '\n'))
		}
	case "outline":
		printOutline(stdout, doc)
	case "search":
		if fs.NArg() < 3 {
			logger.Print("search needs a query")
			return 2
		}
		query := strings.Join(fs.Args()[2:], " ")
		printHits(stdout, doc, query, pages, cfg.GetInt("searchContextLength"))
	case "render":
		p, z, r := *page-1, *zoom, *rotate
		if rec, ok := cfg.History(path); ok && *page == 0 {
			p = rec.Page
			if !isFlagSet(fs, "zoom") {
				z = rec.Zoom
			}
			if !isFlagSet(fs, "rotate") {
				r = rec.Rotation
			}
		}
		p = min(max(p, 0), doc.PageCount()-1)
		if err := render(stdout, doc, cfg.GetInt("cacheSize"), p, z, r, *output); err != nil {
			logger.Printf("render: %v", err)
			return 1
		}
		cfg.SetHistory(path, settings.HistoryRecord{Page: p, Zoom: z, Rotation: r})
		if err := cfg.SaveHistory(); err != nil {
			logger.Printf("Failed to save history: %v", err)
		}
	default:
		fs.Usage()
		return 2
	}
	return 0
}

func defaultPaths() (string, string) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", ""
	}
	dir = filepath.Join(dir, "docview")
	return filepath.Join(dir, "config.json"), filepath.Join(dir, "history.json")
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// selectPages turns the 1-based -page flag into page indexes
func selectPages(doc *document.Handle, page int) ([]int, error) {
	n := doc.PageCount()
	if page > 0 {
		if page > n {
			return nil, fmt.Errorf("page %d out of range, document has %d pages", page, n)
		}
		return []int{page - 1}, nil
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	return all, nil
}

func printInfo(w io.Writer, doc *document.Handle) {
	fmt.Fprintf(w, "File: %s\n", doc.Path())
	fmt.Fprintf(w, "Pages: %d\n", doc.PageCount())
	for i := 0; i < doc.PageCount(); i++ {
		size := doc.PageSize(i, 1, 0)
		fmt.Fprintf(w, "  Page %d: %d x %d\n", i+1, size.Width, size.Height)
	}
}

func printOutline(w io.Writer, doc *document.Handle) {
	root := doc.Outline()
	if root == nil {
		fmt.Fprintln(w, "No outline")
		return
	}
	var walk func(items []*document.OutlineItem, depth int)
	walk = func(items []*document.OutlineItem, depth int) {
		for _, item := range items {
			fmt.Fprintf(w, "%s%s ... %d\n", strings.Repeat("  ", depth), item.Title, doc.Lookup(item)+1)
			walk(item.Children, depth+1)
		}
	}
	walk(root.Children, 0)
}

// printHits prints every hit with a caret line under the match. Widths
// are measured in terminal cells so that wide characters line up.
func printHits(w io.Writer, doc *document.Handle, query string, pages []int, contextLength int) {
	total := 0
	for _, p := range pages {
		for _, hit := range doc.SearchOnPage(query, p, contextLength) {
			context := []rune(hit.Context)
			prefix := fmt.Sprintf("page %d: ", hit.Page+1)
			before := runewidth.StringWidth(string(context[:hit.Offset]))
			end := min(hit.Offset+len([]rune(query)), len(context))
			match := max(runewidth.StringWidth(string(context[hit.Offset:end])), 1)

			fmt.Fprintf(w, "%s%s\n", prefix, hit.Context)
			fmt.Fprintf(w, "%s%s\n", strings.Repeat(" ", len(prefix)+before), strings.Repeat("^", match))
			total++
		}
	}
	fmt.Fprintf(w, "%d matches\n", total)
}

func render(w io.Writer, doc *document.Handle, cacheSize, page int, zoom float64, rotation int, output string) error {
	pages, err := cache.New(doc, max(cacheSize, 1))
	if err != nil {
		return err
	}
	img, err := pages.Get(page, zoom, rotation)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Page %d written to %s (%dx%d)\n", page+1, output, img.Bounds().Dx(), img.Bounds().Dy())
	return nil
}
