// Command zenith-cli works on the transaction store from a terminal:
// print the summary, import and export files, and write period reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"zenith/internal/cli"
	zlog "zenith/internal/log"
	"zenith/internal/transactions"
)

const usage = `Usage: zenith-cli <command> [flags]

Commands:
  summary [--now DATE]            print the dashboard figures
  import --file PATH [--format]   add every row of a JSON, CSV or YAML file
  export [--format] [--out PATH]  write all transactions (stdout without --out)
  report [--period] [--pdf PATH]  print or render the report of a period

Run "zenith-cli <command> --help" for the flags of a command.
`

type command func(ctx context.Context, env *env, args []string) error

var commands = map[string]command{
	"summary": runSummary,
	"import":  runImport,
	"export":  runExport,
	"report":  runReport,
}

// env carries what every command needs.
type env struct {
	store  *transactions.Store
	logger *zlog.Logger
	out    io.Writer
	now    func() time.Time
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	// Logs go to stderr so exports can be piped.
	logger := cli.SetupLogger(cfg, os.Stderr).WithComponent(zlog.ComponentCLI)

	ctx := context.Background()
	store, cleanup, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open transaction store", zlog.FieldError, err)
		os.Exit(1)
	}
	defer func() { _ = cleanup() }()

	e := &env{store: store, logger: logger, out: os.Stdout, now: time.Now}
	if err := run(ctx, e, os.Args[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "zenith-cli %s: %v\n", os.Args[1], err)
		_ = cleanup()
		os.Exit(1)
	}
}

func newFlags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
