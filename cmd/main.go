package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/docopt/docopt-go"
	"go.uber.org/zap"

	"github.com/TFMV/hismetrics"
	"github.com/TFMV/hismetrics/analysis"
	"github.com/TFMV/hismetrics/config"
	"github.com/TFMV/hismetrics/report"
)

const usage = `hismetrics - HIS code metrics for C and C++ functions.

Usage:
  hismetrics [options] <path>...
  hismetrics -h | --help
  hismetrics --version

Options:
  -h --help                  Show this screen.
  --version                  Show version.
  -q --quiet                 Do not print "Checking ..." progress lines.
  --verify                   Compare violations with // HIS-XXX comments.
  --suppress-metrics=<ids>   Comma separated metrics to suppress, e.g. GOTO,CALLS.
  --no-summary               Do not print the summary of violations.
  --statistics               Print every computed value.
  --config=<file>            YAML configuration file.
  --format=<fmt>             Report format: text or json [default: text].
  --frontend=<name>          Input kind: dump or source.
  --out=<file>               Write the report to a file instead of stdout.
  --workers=<n>              Number of concurrent metric workers.
  --exclude=<glob>           Skip paths matching a doublestar pattern.
  --log-level=<level>        Log level: debug, info, warn or error [default: warn].
  --db=<url>                 Store the report in SurrealDB at this URL.
  --namespace=<ns>           SurrealDB namespace [default: test].
  --database=<db>            SurrealDB database [default: test].
  --db-user=<user>           SurrealDB username [default: root].
  --db-pass=<pass>           SurrealDB password [default: root].
`

const version = "hismetrics 0.1.0"

type options struct {
	Paths           []string
	Quiet           bool
	Verify          bool
	SuppressMetrics string
	NoSummary       bool
	Statistics      bool
	Config          string
	Format          string
	Frontend        string
	Out             string
	Workers         string
	Exclude         string
	LogLevel        string
	DB              string
	Namespace       string
	Database        string
	DBUser          string
	DBPass          string
}

// bind copies parsed arguments; options left out of the command line and
// without a default are nil and stay zero
func bind(parsed docopt.Opts) options {
	str := func(key string) string {
		s, _ := parsed[key].(string)
		return s
	}
	flag := func(key string) bool {
		b, _ := parsed[key].(bool)
		return b
	}
	paths, _ := parsed["<path>"].([]string)
	return options{
		Paths:           paths,
		Quiet:           flag("--quiet"),
		Verify:          flag("--verify"),
		SuppressMetrics: str("--suppress-metrics"),
		NoSummary:       flag("--no-summary"),
		Statistics:      flag("--statistics"),
		Config:          str("--config"),
		Format:          str("--format"),
		Frontend:        str("--frontend"),
		Out:             str("--out"),
		Workers:         str("--workers"),
		Exclude:         str("--exclude"),
		LogLevel:        str("--log-level"),
		DB:              str("--db"),
		Namespace:       str("--namespace"),
		Database:        str("--database"),
		DBUser:          str("--db-user"),
		DBPass:          str("--db-pass"),
	}
}

func main() {
	parser := &docopt.Parser{
		HelpHandler: func(err error, usage string) {
			if err != nil {
				fmt.Fprintln(os.Stderr, usage)
				os.Exit(2)
			}
			fmt.Println(usage)
			os.Exit(0)
		},
	}
	parsed, err := parser.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	opts := bind(parsed)
	if err := checkUsage(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(opts.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var analyzer *analysis.Analyzer
	if opts.DB != "" {
		analyzer, err = hismetrics.NewAnalyzerWithDB(cfg, opts.DB, opts.Namespace, opts.Database, opts.DBUser, opts.DBPass, logger)
		if err != nil {
			log.Fatalf("Failed to create analyzer: %v", err)
		}
	} else {
		analyzer = hismetrics.NewAnalyzer(cfg, logger)
	}
	if !opts.Quiet {
		analyzer.Progress = os.Stdout
	}

	if err := analyzer.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize analyzer: %v", err)
	}

	rep, err := analyzer.AnalyzePaths(ctx, opts.Paths)
	if err != nil {
		log.Fatalf("Failed to analyze: %v", err)
	}

	var out bytes.Buffer
	if opts.Verify {
		err = report.WriteVerify(&out, report.Verify(rep))
	} else {
		err = report.Write(&out, rep, opts.Format, report.Options{
			NoSummary:  opts.NoSummary,
			Statistics: opts.Statistics,
		})
	}
	if err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}

	if err := emit(opts.Out, out.Bytes()); err != nil {
		log.Fatalf("Failed to write output file: %v", err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

// checkUsage rejects option values that would only fail once the analysis
// has run
func checkUsage(opts options) error {
	if err := report.CheckFormat(opts.Format); err != nil {
		return fmt.Errorf("invalid --format: %w", err)
	}
	return nil
}

// loadConfig reads the configuration file, then applies flag overrides
func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		var err error
		if cfg, err = config.Load(opts.Config); err != nil {
			return nil, err
		}
	}
	if err := cfg.AddSuppressed(opts.SuppressMetrics); err != nil {
		return nil, err
	}
	if opts.Frontend != "" {
		cfg.Frontend = opts.Frontend
	}
	if opts.Workers != "" {
		n, err := strconv.Atoi(opts.Workers)
		if err != nil {
			return nil, fmt.Errorf("invalid --workers %q: %w", opts.Workers, err)
		}
		cfg.Workers = n
	}
	if opts.Exclude != "" {
		cfg.Exclude = append(cfg.Exclude, opts.Exclude)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func emit(path string, data []byte) error {
	if path == "" {
		_, err := io.Copy(os.Stdout, bytes.NewReader(data))
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Printf("Report written to %s\n", path)
	return nil
}
