package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dd0wney/cluso-flowgraph/pkg/config"
	"github.com/dd0wney/cluso-flowgraph/pkg/logging"
	"github.com/dd0wney/cluso-flowgraph/pkg/pipeline"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

const usage = `flowgraph analyses host-to-entity flow records.

Usage:
  flowgraph <command> [flags]

Commands:
  communities   detect bipartite communities and focus scores
  propagate     propagate known scores across the flow graph
  entities      build the entity significance graph and cluster it
  version       print the version
  help          show this help

Run 'flowgraph <command> -h' for command flags.
`

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// options holds the parsed command line of one subcommand.
type options struct {
	command    string
	configPath string
	flows      stringList
	fromSnap   string
	internal   string
	asnMap     string
	groups     string
	labels     string
	outDir     string
	mode       string
	clustering string
	service    string
	resolveASN bool
	noGML      bool
	snapshot   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "flowgraph %s\n", version)
		return 0
	}

	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, errorStyle.Render("❌ "+err.Error()))
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("❌ "+err.Error()))
		return 1
	}

	report, err := execute(ctx, cfg, opts.command)
	if report != nil {
		fmt.Fprintln(stderr, renderSummary(report, err))
	} else if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("❌ "+err.Error()))
	}
	if err != nil {
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{command: args[0]}
	switch opts.command {
	case pipeline.CommandCommunities, pipeline.CommandPropagate, pipeline.CommandEntities:
	default:
		return nil, fmt.Errorf("unknown command %q", opts.command)
	}

	fs := flag.NewFlagSet(opts.command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.Var(&opts.flows, "flows", "flow record CSV (repeatable)")
	fs.StringVar(&opts.internal, "internal", "", "internal key list")
	fs.StringVar(&opts.asnMap, "asn-map", "", "ip,asn,name map")
	fs.StringVar(&opts.groups, "groups", "", "ip,group,... grouping table")
	fs.StringVar(&opts.outDir, "out", "", "output directory")
	fs.StringVar(&opts.service, "service", "", "keep only flows of this service")
	fs.BoolVar(&opts.resolveASN, "resolve-asn", false, "resolve external keys through the ASN map")
	fs.BoolVar(&opts.noGML, "no-gml", false, "skip GML output")

	switch opts.command {
	case pipeline.CommandCommunities:
		fs.StringVar(&opts.mode, "mode", "", "label propagation mode (single-pass, alternate, full)")
		fs.BoolVar(&opts.snapshot, "snapshot", false, "also write the flow matrix snapshot")
		fs.StringVar(&opts.fromSnap, "from-snapshot", "", "load the flow matrix from a snapshot instead of -flows")
	case pipeline.CommandPropagate:
		fs.StringVar(&opts.mode, "mode", "", "propagation mode (bipartite, community)")
		fs.StringVar(&opts.labels, "labels", "", "key,score training labels")
		fs.StringVar(&opts.fromSnap, "from-snapshot", "", "load the flow matrix from a snapshot instead of -flows")
	case pipeline.CommandEntities:
		fs.StringVar(&opts.mode, "mode", "", "entity graph mode (influence, hierarchy)")
		fs.StringVar(&opts.clustering, "clustering", "", "clustering method (none, mroc, louvain)")
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

// loadConfig reads the config file and layers the command line on top.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if len(opts.flows) > 0 {
		cfg.Ingest.Flows = opts.flows
	}
	setIf(&cfg.Ingest.Snapshot, opts.fromSnap)
	setIf(&cfg.Ingest.Internal, opts.internal)
	setIf(&cfg.Ingest.ASNMap, opts.asnMap)
	setIf(&cfg.Ingest.Groups, opts.groups)
	setIf(&cfg.Ingest.Service, opts.service)
	setIf(&cfg.Output.Dir, opts.outDir)
	setIf(&cfg.Propagation.Labels, opts.labels)
	setIf(&cfg.Entity.Clustering, opts.clustering)
	if opts.resolveASN {
		cfg.Ingest.ResolveASN = true
	}
	if opts.noGML {
		cfg.Output.GML = false
	}
	if opts.snapshot {
		cfg.Output.Snapshot = true
	}

	switch opts.command {
	case pipeline.CommandCommunities:
		setIf(&cfg.Community.Mode, opts.mode)
	case pipeline.CommandPropagate:
		setIf(&cfg.Propagation.Mode, opts.mode)
	case pipeline.CommandEntities:
		setIf(&cfg.Entity.Mode, opts.mode)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func execute(ctx context.Context, cfg *config.Config, command string) (*pipeline.Report, error) {
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}

	env, err := pipeline.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := env.Close(); cerr != nil {
			logger.Warn("failed to close store", logging.Error(cerr))
		}
	}()

	in, err := pipeline.LoadInputs(cfg)
	if err != nil {
		return nil, err
	}

	switch command {
	case pipeline.CommandCommunities:
		return pipeline.Communities(ctx, env, in)
	case pipeline.CommandPropagate:
		return pipeline.Propagate(ctx, env, in)
	default:
		return pipeline.Entities(ctx, env, in)
	}
}
