// keywordsearch builds the BM25 index over the configured document
// collection and queries it from the command line.
//
//	keywordsearch build
//	keywordsearch search "matrix hacker" --limit 3
//	keywordsearch titles matrix
//	keywordsearch tf 1 matrix
//	keywordsearch idf matrix
//	keywordsearch tfidf 1 matrix
//	keywordsearch bm25idf matrix
//	keywordsearch bm25tf 1 matrix --k1 1.5 --b 0.5
//
// Every command accepts --config to point at a YAML config file; without it
// the built-in defaults and KS_* environment overrides apply.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, env *cliEnv, flags *pflag.FlagSet, args []string) error
	flags   func(fs *pflag.FlagSet)
}

var commands = []command{
	{name: "build", usage: "build", summary: "index the document collection and persist it", run: runBuild},
	{name: "search", usage: "search <query>", summary: "rank documents for a query with BM25", run: runSearch, flags: limitFlag},
	{name: "titles", usage: "titles <query>", summary: "list documents whose title contains a query word", run: runTitles, flags: maxFlag},
	{name: "tf", usage: "tf <doc-id> <term>", summary: "raw term frequency in one document", run: runTF},
	{name: "idf", usage: "idf <term>", summary: "classic inverse document frequency", run: runIDF},
	{name: "tfidf", usage: "tfidf <doc-id> <term>", summary: "TF-IDF of a term in one document", run: runTFIDF},
	{name: "bm25idf", usage: "bm25idf <term>", summary: "BM25 inverse document frequency", run: runBM25IDF},
	{name: "bm25tf", usage: "bm25tf <doc-id> <term>", summary: "saturated BM25 term frequency", run: runBM25TF, flags: bm25Flags},
}

// usageError makes main print usage and exit 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(stdout)
		return nil
	}
	cmd, ok := lookup(args[0])
	if !ok {
		return usageError{msg: fmt.Sprintf("unknown command %q", args[0])}
	}

	fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to YAML config file")
	logLevel := fs.String("log-level", "", "override logging.level (debug, info, warn, error)")
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return usageError{msg: err.Error()}
	}

	env, err := newCLIEnv(*configPath, *logLevel, stdout, stderr)
	if err != nil {
		return err
	}
	return cmd.run(ctx, env, fs, fs.Args())
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: keywordsearch <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-24s %s\n", c.usage, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags for every command:")
	fmt.Fprintln(w, "  --config string      path to YAML config file")
	fmt.Fprintln(w, "  --log-level string   override logging.level")
}
