// Package main is the compilatio CLI entry point.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/compilatio/internal/cli"
	"github.com/hyperjump/compilatio/internal/compilatio"
	"github.com/hyperjump/compilatio/internal/config"
	"github.com/hyperjump/compilatio/internal/privacy"
	"github.com/hyperjump/compilatio/internal/storage"
	"github.com/hyperjump/compilatio/internal/submission"
	"github.com/hyperjump/compilatio/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/compilatio/config.yaml"

// errUsage is returned when a command is called with missing arguments. The usage
// line has already been printed.
var errUsage = errors.New("invalid arguments")

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if neither exists the
// defaults and environment are used. Returns the config and the path that was
// actually loaded ("" when none was).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

type command struct {
	name  string
	usage string
	run   func(args []string, out io.Writer) error
}

var commands = []command{
	{"server", "server [flags]                      Start the HTTP server, inbox watcher and sync loop", runServer},
	{"submit", "submit --cm N --user N <file>...    Upload files for analysis", runSubmit},
	{"status", "status [flags] [record-id]          List submissions or show one", runStatus},
	{"document", "document <document-id>              Show a remote document and its analysis", runDocument},
	{"report", "report <record-id> | --doc <id>     Print the report URL", runReport},
	{"analyse", "analyse <record-id> | --doc <id>    Start the analysis", runAnalyse},
	{"delete", "delete <document-id>                Delete a remote document", runDelete},
	{"indexing", "indexing <document-id> [state]      Show or set the indexing state", runIndexing},
	{"sync", "sync                                Refresh every pending submission", runSync},
	{"news", "news [--lang xx]                    Show service announcements", runNews},
	{"filetypes", "filetypes                           List accepted file types", runFileTypes},
	{"quotas", "quotas                              Show quotas and upload limit", runQuotas},
	{"expiration", "expiration                          Show the subscription end date", runExpiration},
	{"configure", "configure                           Report this deployment to the service", runConfigure},
	{"privacy", "privacy <metadata|contexts|users|export|delete> [flags]", runPrivacy},
	{"init", "init [--config path] [--force]      Write a default config file", runInit},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}
	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "compilatio version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	}
	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
	if err := cmd.run(args[1:], stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "%s failed: %v\n", cmd.name, err)
		}
		return 1
	}
	return 0
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse sees them. Go's flag package stops at the
// first non-flag argument, so "compilatio submit essay.pdf --cm 3" would otherwise
// leave --cm unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// options are the flags every command accepts.
type options struct {
	configPath string
	output     string
	debug      bool
}

func newFlagSet(name, usage string, out io.Writer) (*flag.FlagSet, *options) {
	o := &options{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&o.configPath, "config", defaultConfigPath, "config file path")
	fs.StringVar(&o.output, "output", "text", "output format: text or json")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging on stderr")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: compilatio %s\n\n", usage)
		fs.PrintDefaults()
	}
	return fs, o
}

func parseArgs(fs *flag.FlagSet, args []string, minArgs int) error {
	if err := fs.Parse(argsReorder(args)); err != nil {
		return err
	}
	if fs.NArg() < minArgs {
		fs.Usage()
		return errUsage
	}
	return nil
}

// open loads the config and initializes the components for a one-shot command.
func (o *options) open() (*Components, cli.OutputFormat, error) {
	format, err := cli.ParseOutputFormat(o.output)
	if err != nil {
		return nil, "", err
	}
	cfg, _, err := loadConfig(o.configPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewCLILogger(cfg.Debug || o.debug)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create logger: %w", err)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, "", err
	}
	return components, format, nil
}

// Components holds initialized services.
type Components struct {
	Config      *config.Config
	Logger      *zap.Logger
	Storage     storage.Storage
	Client      *compilatio.Client
	Submissions *submission.Service
	Privacy     *privacy.Provider
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

func submissionOptions(cfg *config.Config, logger *zap.Logger, extra ...submission.Option) []submission.Option {
	opts := []submission.Option{
		submission.WithLogger(logger),
		submission.WithAutoStart(cfg.Analysis.AutoStart),
	}
	return append(opts, extra...)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	client, err := compilatio.NewClient(cfg.Compilatio.APIKey, cfg.Compilatio.URL,
		compilatio.WithHTTPClient(&http.Client{Timeout: cfg.Compilatio.Timeout}),
		compilatio.WithLogger(logger),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}
	if !client.Configured() {
		logger.Warn("no API key configured; set " + config.EnvAPIKey)
	}

	var remote privacy.Remote
	if client.Configured() {
		remote = client
	}
	return &Components{
		Config:      cfg,
		Logger:      logger,
		Storage:     store,
		Client:      client,
		Submissions: submission.NewService(client, store, submissionOptions(cfg, logger)...),
		Privacy:     privacy.NewProvider(store, remote, privacy.WithLogger(logger)),
	}, nil
}

func pluginConfiguration(cfg *config.Config) compilatio.PluginConfiguration {
	return compilatio.PluginConfiguration{
		RuntimeVersion: cfg.Plugin.RuntimeVersion,
		HostVersion:    cfg.Plugin.HostVersion,
		PluginVersion:  cfg.Plugin.PluginVersion,
		Language:       cfg.Plugin.Language,
		CronFrequency:  cfg.Plugin.CronFrequency,
	}
}

func parseRecordID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", s)
	}
	return id, nil
}

func parseUserIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runInit(args []string, out io.Writer) error {
	fs, o := newFlagSet("init", "init [--config path] [--force]", out)
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}
	if _, err := os.Stat(o.configPath); err == nil && !*force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", o.configPath)
	}
	if err := os.MkdirAll(filepath.Dir(o.configPath), 0755); err != nil {
		return err
	}
	if err := config.Save(o.configPath, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s\n", o.configPath)
	fmt.Fprintf(out, "Set %s in the environment or in %s\n", config.EnvAPIKey, filepath.Join(filepath.Dir(o.configPath), ".env"))
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "compilatio - Compilatio plagiarism detection connector")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	for _, c := range commands {
		fmt.Fprintf(w, "  compilatio %s\n", c.usage)
	}
	fmt.Fprintln(w, "  compilatio version                          Show version")
	fmt.Fprintln(w, "  compilatio help                             Show this help")
	fmt.Fprintf(w, `
Common Flags:
  --config string    Config file path (default: %s)
  --output string    Output format: text or json (default: text)
  --debug            Enable debug logging on stderr

The API key is read from %s (environment or a .env file next to the config).

Examples:
  compilatio init
  compilatio server
  compilatio submit --cm 12 --user 34 essay.pdf
  compilatio status --cm 12
  compilatio status --refresh 7
  compilatio indexing 3f2a... false
  compilatio privacy export --cm 12 --user 34
  compilatio privacy delete --cm 12 --users 34,35
`, defaultConfigPath, config.EnvAPIKey)
}
