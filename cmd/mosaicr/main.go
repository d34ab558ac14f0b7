package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/ironsheep/mosaicr/internal/mosaic"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options are the CLI settings that are not part of the engine configuration.
type options struct {
	extensions  string
	verbose     bool
	noProgress  bool
	showVersion bool
	showHelp    bool
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg := mosaic.DefaultConfig()
	fs, opts := newFlagSet(&cfg, stderr)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		fs.Usage()
		return exitUsage
	}

	if opts.showVersion {
		fmt.Fprintf(stdout, "mosaicr %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return exitOK
	}
	if opts.showHelp {
		printUsage(stdout, fs)
		return exitOK
	}

	log := newLogger(stderr, opts.verbose)
	log.WithFields(logrus.Fields{"version": Version, "commit": GitCommit}).Debug("mosaicr starting")

	cfg.Extensions = mosaic.ParseExtensions(opts.extensions)

	prog := newProgress(stdout, !opts.noProgress)
	prog.update(mosaic.StageValidate, 0, 0)
	if problems := checkInputs(cfg); len(problems) > 0 {
		prog.stop()
		for _, p := range problems {
			fmt.Fprintf(stderr, "Error: %s\n", p)
		}
		fmt.Fprintln(stderr)
		fs.Usage()
		return exitUsage
	}

	engine, err := mosaic.NewEngine(cfg, log)
	if err != nil {
		prog.stop()
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	engine.Progress = prog.update
	engine.Indexed = func(c *mosaic.Corpus) { prog.indexed(c.Len()) }

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	result, err := engine.Generate(ctx, cfg.ReferencePath, cfg.SourceDir)
	if err == nil {
		err = engine.WriteFile(result, cfg.OutputPath)
	}
	prog.stop()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	log.WithFields(logrus.Fields{
		"tiles":            len(result.Pairs),
		"corpus":           result.Corpus.Len(),
		"distinct_sources": result.DistinctSources(),
	}).Info("mosaic complete")
	fmt.Fprintf(stdout, "Mosaic saved in %s.\n", cfg.OutputPath)
	return exitOK
}

func newFlagSet(cfg *mosaic.Config, stderr io.Writer) (*pflag.FlagSet, *options) {
	opts := &options{}
	fs := pflag.NewFlagSet("mosaicr", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	fs.StringVarP(&cfg.ReferencePath, "input", "i", "", "Reference image to reproduce.")
	fs.StringVarP(&cfg.SourceDir, "source-folder", "s", "", "Folder scanned recursively for source images.")
	fs.StringVarP(&cfg.OutputPath, "output", "o", "", "Output image path (.jpg or .png).")
	fs.IntVarP(&cfg.TilesHorizontal, "blocks-horizontal", "x", cfg.TilesHorizontal, "Number of tiles across.")
	fs.IntVarP(&cfg.TilesVertical, "blocks-vertical", "y", cfg.TilesVertical, "Number of tiles down.")
	fs.IntVarP(&cfg.Quality, "quality", "q", cfg.Quality, "JPEG quality of the output (0-100).")
	fs.StringVar(&opts.extensions, "ext", strings.Join(cfg.Extensions, ","), "Comma separated source extensions, case-sensitive.")
	fs.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Number of images processed concurrently.")
	fs.StringVar(&cfg.Resampler, "resampler", cfg.Resampler, "Resampling backend (imaging, bild, nfnt, xdraw).")
	fs.StringVar(&cfg.Metric, "metric", cfg.Metric, "Color distance (euclidean, ciede2000).")
	fs.StringVar(&cfg.Index, "index", cfg.Index, "Nearest color search (auto, linear, kdtree).")
	fs.StringVar(&cfg.IndexCachePath, "index-cache", "", "File caching source image colors between runs.")
	fs.IntVar(&cfg.MaxTileSize, "max-tile-size", cfg.MaxTileSize, "Tile edge above which the reference is downscaled for color sampling.")
	fs.BoolVar(&opts.noProgress, "no-progress", false, "Print stage lines without the spinner.")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging.")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version information.")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Print this help message.")

	fs.SetNormalizeFunc(normalizeFlagName)
	fs.Usage = func() { printUsage(stderr, fs) }
	return fs, opts
}

// legacyFlagNames maps the camelCase long names of earlier releases, lower
// cased, to the current flag names. They are accepted but not listed.
var legacyFlagNames = map[string]string{
	"blockshorizontal": "blocks-horizontal",
	"blocksvertical":   "blocks-vertical",
	"sourcefolder":     "source-folder",
}

// normalizeFlagName makes long flag names case-insensitive and resolves the
// legacy aliases.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	name = strings.ToLower(name)
	if current, ok := legacyFlagNames[name]; ok {
		name = current
	}
	return pflag.NormalizedName(name)
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "mosaicr - build a photo mosaic from a folder of images")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: mosaicr -i <reference> -s <source-folder> -o <output> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprint(w, fs.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  MOSAICR_LOG_LEVEL=debug    Log level (debug, info, warn, error)")
}

// checkInputs reports every problem with the command line at once: missing
// paths, paths that do not exist and invalid engine options.
func checkInputs(cfg mosaic.Config) []string {
	var problems []string

	switch info, err := os.Stat(cfg.ReferencePath); {
	case cfg.ReferencePath == "":
		problems = append(problems, "reference image is required (--input)")
	case err != nil:
		problems = append(problems, fmt.Sprintf("reference image %q does not exist", cfg.ReferencePath))
	case info.IsDir():
		problems = append(problems, fmt.Sprintf("reference image %q is a directory", cfg.ReferencePath))
	}

	switch info, err := os.Stat(cfg.SourceDir); {
	case cfg.SourceDir == "":
		problems = append(problems, "source folder is required (--source-folder)")
	case err != nil:
		problems = append(problems, fmt.Sprintf("source folder %q does not exist", cfg.SourceDir))
	case !info.IsDir():
		problems = append(problems, fmt.Sprintf("source folder %q is not a directory", cfg.SourceDir))
	}

	if cfg.OutputPath == "" {
		problems = append(problems, "output path is required (--output)")
	}

	if err := cfg.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	return problems
}

// newLogger logs to stderr so progress output on stdout stays readable.
func newLogger(stderr io.Writer, verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logLevel(os.Getenv("MOSAICR_LOG_LEVEL"), verbose))
	return log
}

func logLevel(env string, verbose bool) logrus.Level {
	if verbose {
		return logrus.DebugLevel
	}
	if env == "" {
		return logrus.WarnLevel
	}
	level, err := logrus.ParseLevel(env)
	if err != nil {
		return logrus.WarnLevel
	}
	return level
}
