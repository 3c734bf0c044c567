package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/cexll/grokrelay/pkg/config"
)

// ioStreams carries stdin/stdout/stderr so tests can capture them.
type ioStreams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

// command is one grokrelay subcommand.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, configPath string, streams ioStreams) error
}

var commands = []command{
	{name: "serve", summary: "Start the HTTP relay", run: serveCommand},
	{name: "config", summary: "Manage the config file (init, get, set, list)", run: configCommand},
	{name: "hash-password", summary: "Print a bcrypt hash for auth.password_hash", run: hashPasswordCommand},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	streams := ioStreams{in: os.Stdin, out: os.Stdout, err: os.Stderr}
	err := runCLI(ctx, os.Args[1:], streams)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(streams.err, "grokrelay:", err)
		os.Exit(1)
	}
}

func runCLI(ctx context.Context, argv []string, streams ioStreams) error {
	fs := flag.NewFlagSet("grokrelay", flag.ContinueOnError)
	fs.SetOutput(streams.err)
	configPath := fs.String("config", config.DefaultPath(), "Path to the YAML config file.")
	fs.Usage = func() { usage(streams.err, fs) }
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	name := fs.Arg(0)
	if name == "help" {
		fs.Usage()
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == name {
			return cmd.run(ctx, fs.Args()[1:], *configPath, streams)
		}
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", name)
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "grokrelay - authenticated streaming relay for Grok chat\n\n")
	fmt.Fprintf(w, "Usage:\n  grokrelay [-config path] <command> [args]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-14s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(w, "\nFlags:\n")
	fs.PrintDefaults()
}
