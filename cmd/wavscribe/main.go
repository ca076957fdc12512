// Command wavscribe transcribes WAV files with a local whisper.cpp model,
// either once from the command line or as an HTTP service.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/wavscribe/internal/config"
	"github.com/MrWong99/wavscribe/pkg/engine"
	"github.com/MrWong99/wavscribe/pkg/engine/whispercpp"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	c := newCLI(os.Stdin, os.Stdout, os.Stderr)
	root := newRootCmd(c)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(c.stderr, "wavscribe: %v\n", err)
		return 1
	}
	return 0
}

// cli carries the process streams and global flags shared by all commands.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	verbose    bool

	level *slog.LevelVar
	log   *slog.Logger

	// loader overrides the whisper.cpp loader.
	loader engine.Loader
}

func newCLI(stdin io.Reader, stdout, stderr io.Writer) *cli {
	return &cli{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		level:  new(slog.LevelVar),
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "wavscribe",
		Short:         "Offline speech-to-text for WAV files",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(c.stdin)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "path to the YAML configuration file")
	pf.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "shorthand for --log-level debug")

	root.AddCommand(newTranscribeCmd(c), newServeCmd(c), newLanguagesCmd(c))
	return root
}

// setup loads the configuration and installs the logger. Without --config
// the built-in defaults are used.
func (c *cli) setup() (*config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		cfg, err = config.Load(c.configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %q not found", c.configPath)
			}
			return nil, err
		}
	}

	level := cfg.Server.LogLevel
	if c.logLevel != "" {
		level = config.LogLevel(c.logLevel)
		if !level.IsValid() {
			return nil, fmt.Errorf("invalid --log-level %q; valid values: debug, info, warn, error", c.logLevel)
		}
	}
	if c.verbose {
		level = config.LogDebug
	}
	c.level.Set(slogLevel(level))
	c.log = slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: c.level}))
	slog.SetDefault(c.log)
	return cfg, nil
}

// levelPinned reports whether the log level was fixed on the command line,
// in which case config reloads leave it alone.
func (c *cli) levelPinned() bool {
	return c.logLevel != "" || c.verbose
}

func (c *cli) engineLoader() engine.Loader {
	if c.loader != nil {
		return c.loader
	}
	return whispercpp.NewLoader(whispercpp.WithLogger(c.log))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
