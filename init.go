package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/cppmodule/internal/config"
	"github.com/phobologic/cppmodule/internal/filter"
)

const starterHeader = `# cppmodule configuration.
#
# default applies to declarations no rule matches: nothing, declaration or
# definition. Rules match qualified names with gitignore patterns, "::"
# written as "/", and the last matching rule wins. kinds narrows a rule to
# some of: %s.
`

// newInitCmd implements the init subcommand, which writes a starter config.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var force, dryRun bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter " + config.DefaultFile,
		Long: `Write a starter config file. path is a directory or a file name and
defaults to ./` + config.DefaultFile + `. An existing file is left alone unless --force
is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFile
			if len(args) > 0 {
				path = args[0]
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					path = filepath.Join(path, config.DefaultFile)
				}
			}
			return runInit(path, force, dryRun, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the config instead of writing it")
	return cmd
}

func runInit(path string, force, dryRun bool, stdout, stderr io.Writer) error {
	content, err := starterConfig()
	if err != nil {
		return err
	}

	if dryRun {
		_, _ = fmt.Fprint(stdout, content)
		return nil
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote %s\n", path)
	return nil
}

// starterConfig returns the defaults plus a rule hiding implementation
// namespaces, with a header explaining the rule syntax.
func starterConfig() (string, error) {
	cfg := config.Default()
	cfg.Rules = []config.Rule{
		{Patterns: []string{"detail", "internal"}, What: filter.Nothing.String()},
	}
	data, err := cfg.Marshal()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(starterHeader, strings.Join(filter.KindNames(), ", ")) + string(data), nil
}
