package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cexll/grokrelay/pkg/auth"
	"github.com/cexll/grokrelay/pkg/config"
)

// configSubcommands operate on the resolved config path.
var configSubcommands = map[string]func(path string, args []string, out io.Writer) error{
	"init": configInit,
	"set":  configSet,
	"get":  configGet,
	"list": configList,
}

func configCommand(_ context.Context, argv []string, cfgPath string, streams ioStreams) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(streams.err)
	pathFlag := fs.String("config", cfgPath, "Path to the YAML config file.")
	fs.Usage = func() {
		fmt.Fprint(streams.err, `Usage: grokrelay config [-config path] <subcommand> [args]

Subcommands:
  init              write a default config file
  get <key>         print one value, e.g. completion.model
  set <key> <value> update one value in place; lists are comma separated
  list              print every key=value

API keys, SECRET_KEY, PASSWORD and AWS credentials are read from the environment only.

Flags:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("config: missing subcommand")
	}
	path, err := config.ExpandPath(*pathFlag)
	if err != nil {
		return err
	}
	sub, ok := configSubcommands[fs.Arg(0)]
	if !ok {
		return fmt.Errorf("config: unknown subcommand %q", fs.Arg(0))
	}
	return sub(path, fs.Args()[1:], streams.out)
}

func configInit(path string, _ []string, out io.Writer) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("check config: %w", err)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(out, "created %s\n", path)
	return nil
}

func configSet(path string, args []string, out io.Writer) error {
	if len(args) < 2 {
		return errors.New("config set requires <key> <value>")
	}
	key := strings.ToLower(strings.TrimSpace(args[0]))
	value := strings.TrimSpace(strings.Join(args[1:], " "))
	if err := config.SetValue(path, key, value); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s updated\n", key)
	return nil
}

func configGet(path string, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("config get requires a key")
	}
	cfg, err := config.Read(path)
	if err != nil {
		return err
	}
	value, err := config.Value(cfg, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}

func configList(path string, _ []string, out io.Writer) error {
	cfg, err := config.Read(path)
	if err != nil {
		return err
	}
	values, err := config.Values(cfg)
	if err != nil {
		return err
	}
	for _, key := range config.Keys() {
		fmt.Fprintf(out, "%s=%s\n", key, values[key])
	}
	return nil
}

func hashPasswordCommand(_ context.Context, argv []string, _ string, streams ioStreams) error {
	set := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	set.SetOutput(streams.err)
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: grokrelay hash-password [password]")
		fmt.Fprintln(streams.err, "\nReads the password from stdin when no argument is given.")
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	password := strings.Join(set.Args(), " ")
	if password == "" && streams.in != nil {
		line, err := bufio.NewReader(streams.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(streams.out, hash)
	return nil
}
