// cppmodule builds the module interface of C and C++ translation units and
// prints it in TOON format.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/phobologic/cppmodule/internal/config"
	"github.com/phobologic/cppmodule/internal/lang"
	"github.com/phobologic/cppmodule/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

type rootOptions struct {
	configPath  string
	templates   bool
	maxFileSize int64
	workers     int
	langs       []string
	cachePath   string
	verbose     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:   "cppmodule [path...]",
		Short: "Print the module interface of C and C++ sources",
		Long: `Parse C and C++ sources, walk their declarations, and print what each
translation unit exposes: declarations, definitions, their template
counterparts and static assertions.

Paths may be files or directories and default to the current directory.
Directories are searched recursively, honoring .gitignore.

Settings are read from .cppmodule.yaml in the first directory argument
(or --config), then CPPMODULE_* environment variables, then flags.`,
		Args:          cobra.ArbitraryArgs,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("cppmodule {{.Version}}\n")

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "config file (default: <path>/"+config.DefaultFile+")")
	f.BoolVarP(&opts.templates, "templates", "t", false, "include primary templates and template-dependent declarations")
	f.Int64Var(&opts.maxFileSize, "max-file-size", 0, "skip files larger than this many bytes (0: no limit)")
	f.IntVarP(&opts.workers, "workers", "j", 0, "files built concurrently (0: GOMAXPROCS)")
	f.StringSliceVarP(&opts.langs, "langs", "l", nil, "languages to include (c, cpp)")
	f.StringVar(&opts.cachePath, "cache", "", "cache file path")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log advisory diagnostics")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	return cmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig layers the config file, the environment and explicitly set
// flags, in that order.
func loadConfig(cmd *cobra.Command, opts rootOptions, paths []string) (config.Config, error) {
	path := opts.configPath
	if path == "" {
		dir := "."
		if len(paths) > 0 {
			if info, err := os.Stat(paths[0]); err == nil && info.IsDir() {
				dir = paths[0]
			}
		}
		path = filepath.Join(dir, config.DefaultFile)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv(os.Getenv)

	flags := cmd.Flags()
	if flags.Changed("templates") {
		cfg.Templates = opts.templates
	}
	if flags.Changed("max-file-size") {
		cfg.MaxFileSize = opts.maxFileSize
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("langs") {
		cfg.Languages = opts.langs
	}
	for _, name := range cfg.Languages {
		if _, ok := lang.Languages[name]; !ok {
			return cfg, fmt.Errorf("unsupported language %q", name)
		}
	}
	return cfg, cfg.Validate()
}

func runBuild(cmd *cobra.Command, opts rootOptions, paths []string, stdout, stderr io.Writer) error {
	logger := newLogger(stderr, opts.verbose)

	cfg, err := loadConfig(cmd, opts, paths)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}

	files, err := collectFiles(paths, cfg.Languages)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no C or C++ sources found")
	}

	files = filterBySize(files, cfg.MaxFileSize, logger)
	if len(files) == 0 {
		return fmt.Errorf("no C or C++ sources found (all exceeded size limit)")
	}

	var cacheKey string
	if opts.cachePath != "" {
		if cacheKey, err = configKey(cfg); err != nil {
			return err
		}
		if data, ok := readCache(opts.cachePath, cacheKey, files); ok {
			_, _ = stdout.Write(data)
			return nil
		}
	}

	units, err := buildConcurrent(cmd.Context(), files, cfg, logger)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return fmt.Errorf("no files could be built")
	}

	output := toon.Encode(units)

	if opts.cachePath != "" {
		if err := writeCache(opts.cachePath, cacheKey, output); err != nil {
			logger.Warn("writing cache", slog.String("path", opts.cachePath), slog.Any("error", err))
		}
	}

	_, _ = fmt.Fprintln(stdout, output)
	return nil
}
