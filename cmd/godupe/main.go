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
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/sadopc/godupe/internal/config"
	"github.com/sadopc/godupe/internal/engine"
	"github.com/sadopc/godupe/internal/logging"
	"github.com/sadopc/godupe/internal/model"
	"github.com/sadopc/godupe/internal/ops"
	"github.com/sadopc/godupe/internal/remote"
	"github.com/sadopc/godupe/internal/ui"
)

var (
	version = "dev"
)

const progressInterval = 200 * time.Millisecond

type scanTarget struct {
	Remote         bool
	LocalPath      string
	SSHDestination string
	RemotePath     string
}

type cliFlags struct {
	configPath  string
	filter      string
	glob        string
	algo        string
	workers     int
	noFollow    bool
	timeout     time.Duration
	sortBy      string
	exportPath  string
	printReport bool
	importPath  string
	logFile     string
	logLevel    string
	logJSON     bool
	showVersion bool
	showConfig  bool
	sshPort     int
	sshBatch    bool
	sshTimeout  time.Duration
}

func main() {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Read settings from a YAML file (default ./"+config.DefaultFileName+" if present)")
	flag.StringVar(&f.filter, "filter", "", "Only consider files whose full path matches this regular expression")
	flag.StringVar(&f.glob, "glob", "", "Only consider files whose full path matches this glob (** crosses directories)")
	flag.StringVar(&f.algo, "algo", "sha256", "Digest algorithm: sha256, sha512 or blake3")
	flag.IntVar(&f.workers, "j", 0, "Hash workers (0 = auto: min(CPU cores, 4))")
	flag.BoolVar(&f.noFollow, "no-follow-symlinks", false, "Ignore symbolic links to files")
	flag.DurationVar(&f.timeout, "timeout", 0, "Abort the search after this long (0 = no limit)")
	flag.StringVar(&f.sortBy, "sort", "wasted", "Group order: wasted, size, count or path (suffix -asc or -desc)")
	flag.StringVar(&f.exportPath, "export", "", "Export results to a JSON file (headless mode, use '-' for stdout)")
	flag.BoolVar(&f.printReport, "print", false, "Print a text report to stdout (headless mode)")
	flag.StringVar(&f.importPath, "import", "", "Import and view results from a JSON file")
	flag.StringVar(&f.logFile, "log-file", "", "Write diagnostic logs to this file")
	flag.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flag.BoolVar(&f.logJSON, "log-json", false, "Write logs as JSON")
	flag.BoolVar(&f.showVersion, "version", false, "Show version")
	flag.BoolVar(&f.showConfig, "print-config", false, "Print the effective configuration as YAML and exit")
	flag.IntVar(&f.sshPort, "ssh-port", 22, "SSH port for remote scans")
	flag.BoolVar(&f.sshBatch, "ssh-batch", false, "Disable SSH prompts (key/agent auth only)")
	flag.DurationVar(&f.sshTimeout, "ssh-timeout", 15*time.Second, "SSH connection timeout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "godupe - Find duplicate files\n\n")
		fmt.Fprintf(os.Stderr, "Usage: godupe [options] [path|user@host [remote-path]]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  godupe .                             Search the current directory\n")
		fmt.Fprintf(os.Stderr, "  godupe --filter '.*\\.jpe?g' ~/Photos  Only compare JPEG files\n")
		fmt.Fprintf(os.Stderr, "  godupe --glob '**/*.mp3' /music       Only compare MP3 files\n")
		fmt.Fprintf(os.Stderr, "  godupe --print /data                 Print duplicate groups and exit\n")
		fmt.Fprintf(os.Stderr, "  godupe --export dupes.json .         Export groups to JSON\n")
		fmt.Fprintf(os.Stderr, "  godupe --import dupes.json           View exported groups\n")
		fmt.Fprintf(os.Stderr, "  godupe user@192.168.1.10 /srv        Search a remote directory over SSH\n")
		fmt.Fprintf(os.Stderr, "  godupe --algo blake3 -j 2 /home      Hash with BLAKE3 on 2 workers\n")
	}

	flag.Parse()

	if f.showVersion {
		fmt.Printf("godupe %s\n", version)
		os.Exit(0)
	}

	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	if f.importPath != "" {
		for _, name := range []string{"filter", "glob", "algo", "j", "no-follow-symlinks", "timeout"} {
			if set[name] {
				fail(fmt.Errorf("--%s cannot be used with --import", name))
			}
		}
	}
	if f.printReport && f.exportPath == "-" {
		fail(errors.New("--print and --export - cannot be used together"))
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fail(err)
	}
	applyFlags(cfg, &f, set)
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	if f.showConfig {
		if _, err := cfg.WriteTo(os.Stdout); err != nil {
			fail(err)
		}
		return
	}

	logger, closeLog, err := openLogger(cfg.Log)
	if err != nil {
		fail(err)
	}
	defer closeLog()

	if err := run(cfg, &f, flag.Args(), logger); err != nil {
		closeLog()
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// applyFlags copies every flag given on the command line over cfg, so flags
// beat the config file and the file beats the defaults.
func applyFlags(cfg *config.Config, f *cliFlags, set map[string]bool) {
	if set["filter"] {
		cfg.Filter = f.filter
	}
	if set["glob"] {
		cfg.Glob = f.glob
	}
	if set["algo"] {
		cfg.Algorithm = f.algo
	}
	if set["j"] {
		cfg.Workers = f.workers
	}
	if set["no-follow-symlinks"] {
		cfg.FollowSymlinks = !f.noFollow
	}
	if set["timeout"] {
		cfg.Timeout = f.timeout
	}
	if set["sort"] {
		cfg.Sort = f.sortBy
	}
	if set["log-file"] {
		cfg.Log.File = f.logFile
	}
	if set["log-level"] {
		cfg.Log.Level = f.logLevel
	}
	if set["log-json"] {
		cfg.Log.JSON = f.logJSON
	}
	if set["ssh-port"] {
		cfg.SSH.Port = f.sshPort
	}
	if set["ssh-batch"] {
		cfg.SSH.Batch = f.sshBatch
	}
	if set["ssh-timeout"] {
		cfg.SSH.Timeout = f.sshTimeout
	}
}

func openLogger(lc config.LogConfig) (*slog.Logger, func(), error) {
	opts := []logging.Option{
		logging.WithLevel(lc.Level),
		logging.WithJSON(lc.JSON),
		logging.WithAddSource(lc.AddSource),
		logging.WithSetDefault(true),
	}
	if lc.File == "" {
		return logging.New(opts...), func() {}, nil
	}
	file, err := logging.OpenFile(lc.File)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open log file: %w", err)
	}
	logger := logging.New(append(opts, logging.WithWriter(file))...)
	return logger, func() { _ = file.Close() }, nil
}

func run(cfg *config.Config, f *cliFlags, args []string, logger *slog.Logger) error {
	headless := f.exportPath != "" || f.printReport

	if f.importPath != "" {
		if len(args) > 0 {
			return errors.New("--import cannot be used with scan targets")
		}
		if headless {
			report, err := ops.ImportJSON(f.importPath)
			if err != nil {
				return fmt.Errorf("importing: %w", err)
			}
			return emit(report, f)
		}
		app := ui.NewAppFromImport(f.importPath, uiConfig(cfg, "", engine.Options{}))
		return runTUI(app)
	}

	target, err := resolveScanTarget(args)
	if err != nil {
		return err
	}

	matcher, err := cfg.Matcher()
	if err != nil {
		return err
	}
	opts := engine.Options{
		Filter:         matcher,
		Workers:        cfg.Workers,
		Algorithm:      cfg.DigestAlgorithm(),
		FollowSymlinks: cfg.FollowSymlinks,
		Logger:         logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := target.LocalPath
	remoteName := ""
	if target.Remote {
		src, err := remote.Dial(ctx, remote.Config{
			Target:    target.SSHDestination,
			Port:      cfg.SSH.Port,
			BatchMode: cfg.SSH.Batch,
			Timeout:   cfg.SSH.Timeout,
		})
		if err != nil {
			return err
		}
		defer src.Close()
		logger.Info("connected", slog.String("target", src.Target()))
		opts.Source = src
		root = target.RemotePath
		remoteName = src.Target()
	}

	if !headless {
		// The TUI owns Ctrl+C while it runs.
		stop()
		return runTUI(ui.NewApp(uiConfig(cfg, root, opts, withRemote(remoteName))))
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	report, err := search(ctx, root, opts, progressWriter())
	if err != nil {
		return err
	}
	if report == nil {
		// Interrupted: nothing to write.
		return nil
	}
	report.Remote = remoteName
	return emit(report, f)
}

type uiOption func(*ui.Config)

func withRemote(name string) uiOption {
	return func(c *ui.Config) { c.Remote = name }
}

func uiConfig(cfg *config.Config, root string, opts engine.Options, extra ...uiOption) ui.Config {
	c := ui.Config{
		Root:       root,
		Options:    opts,
		ExportPath: cfg.ExportPath,
		Version:    version,
		Sort:       cfg.SortConfig(),
		Timeout:    cfg.Timeout,
	}
	for _, o := range extra {
		o(&c)
	}
	return c
}

func runTUI(app *ui.App) error {
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return app.FatalError()
}

// search runs the engine next to a progress printer on stderr.
func search(ctx context.Context, root string, opts engine.Options, progress io.Writer) (*model.Report, error) {
	tracker := engine.NewTracker()
	tracker.Attach(&opts)

	progressCh := make(chan engine.Progress, 10)
	reportCtx, stopReport := context.WithCancel(ctx)

	var g errgroup.Group
	g.Go(func() error {
		tracker.Report(reportCtx, progressCh, progressInterval)
		close(progressCh)
		return nil
	})
	g.Go(func() error {
		printed := false
		for p := range progressCh {
			if progress == nil {
				continue
			}
			fmt.Fprintf(progress, "\r\033[K%s", progressLine(root, p))
			printed = true
		}
		if printed {
			fmt.Fprintln(progress)
		}
		return nil
	})

	var report *model.Report
	g.Go(func() error {
		defer stopReport()
		var err error
		report, err = engine.Run(ctx, root, opts)
		tracker.Finish()
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func progressLine(root string, p engine.Progress) string {
	switch p.Phase {
	case engine.PhaseWalking:
		return fmt.Sprintf("Scanning %s: %s files...", root, humanize.Comma(p.Discovered))
	case engine.PhaseHashing:
		return fmt.Sprintf("Hashing %s of %s candidates (%s files scanned)...",
			humanize.Comma(p.Hashed), humanize.Comma(p.Candidates), humanize.Comma(p.Total))
	default:
		return fmt.Sprintf("Hashed %s of %s files in %s",
			humanize.Comma(p.Hashed), humanize.Comma(p.Total), p.Duration.Round(time.Millisecond))
	}
}

// progressWriter returns stderr when it is a terminal, nil otherwise.
func progressWriter() io.Writer {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return os.Stderr
}

func emit(report *model.Report, f *cliFlags) error {
	if f.printReport {
		if err := ops.WriteText(os.Stdout, report); err != nil {
			return err
		}
	}
	if f.exportPath != "" {
		if err := ops.ExportJSON(report, f.exportPath, version); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if f.exportPath != "-" && !f.printReport {
			fmt.Printf("Exported to %s\n", f.exportPath)
		}
	}
	return nil
}

func resolveScanTarget(args []string) (scanTarget, error) {
	if len(args) == 0 {
		return scanTarget{LocalPath: "."}, nil
	}

	first := args[0]
	if pathExists(first) {
		if len(args) > 1 {
			return scanTarget{}, fmt.Errorf("too many positional arguments for local scan")
		}
		return scanTarget{LocalPath: first}, nil
	}

	if isRemote, err := validateRemoteTarget(first); isRemote {
		if err != nil {
			return scanTarget{}, err
		}
		if len(args) > 2 {
			return scanTarget{}, fmt.Errorf("too many positional arguments for remote scan")
		}

		remotePath := "."
		if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
			remotePath = args[1]
		}

		return scanTarget{
			Remote:         true,
			SSHDestination: first,
			RemotePath:     remotePath,
		}, nil
	}

	if len(args) > 1 {
		return scanTarget{}, fmt.Errorf("too many positional arguments")
	}

	return scanTarget{LocalPath: first}, nil
}

func validateRemoteTarget(raw string) (bool, error) {
	if strings.ContainsAny(raw, `/\`) {
		return false, nil
	}
	if strings.Count(raw, "@") != 1 {
		return false, nil
	}

	user, host, _ := strings.Cut(raw, "@")
	if user == "" || host == "" {
		return true, fmt.Errorf("invalid remote target %q: expected user@host", raw)
	}
	if strings.HasPrefix(user, "-") || strings.HasPrefix(host, "-") {
		return true, fmt.Errorf("invalid remote target %q", raw)
	}
	if strings.ContainsAny(raw, " \t\n\r") {
		return true, fmt.Errorf("invalid remote target %q: spaces are not allowed", raw)
	}
	if strings.HasPrefix(host, "[") {
		end := strings.Index(host, "]")
		switch {
		case end == -1:
			return true, fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
		case end == 1:
			return true, fmt.Errorf("invalid remote target %q: empty host", raw)
		case end != len(host)-1:
			rest := host[end+1:]
			if strings.HasPrefix(rest, ":") && isAllDigits(rest[1:]) {
				return true, fmt.Errorf("remote target %q must not include :port; use --ssh-port", raw)
			}
			return true, fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
		}
	} else if strings.Contains(host, "]") {
		return true, fmt.Errorf("invalid remote target %q: malformed bracketed host", raw)
	}
	if looksLikeHostPort(host) {
		return true, fmt.Errorf("remote target %q must not include :port; use --ssh-port", raw)
	}

	return true, nil
}

func looksLikeHostPort(host string) bool {
	if strings.Count(host, ":") != 1 {
		return false
	}
	_, port, _ := strings.Cut(host, ":")
	return isAllDigits(port)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
