package main

import (
	"context"
	"github.com/saylorsolutions/pvdispatch/cli"
	"github.com/saylorsolutions/pvdispatch/config"
	flag "github.com/spf13/pflag"
	"io"
	"log/slog"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
)

// app holds what every command shares once flags are parsed.
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	env      config.Env
	conf     *config.Config
	log      *slog.Logger
	closeLog func() error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		env:    config.OSEnv(),
	}
}

func (a *app) commands() *cli.CommandSet {
	set := cli.NewCommandSet("pvdispatch")
	set.Printer().Redirect(a.stderr)
	set.Before(a.setup)
	a.simulateCommand(set)
	a.configCommand(set)
	return set
}

func addConfigFlags(flags *flag.FlagSet) {
	flags.StringP(flagConfig, "c", "", "Reads configuration from a YAML `file`, PVDISPATCH_* environment variables take precedence")
	flags.String(flagLogLevel, "", "Overrides the configured log `level` (debug, info, warn, error)")
}

// setup loads configuration and creates the logger.
func (a *app) setup(_ context.Context, flags *flag.FlagSet) error {
	var path string
	if flags.Lookup(flagConfig) != nil {
		path = cli.MustGet(flags.GetString(flagConfig))
	}
	conf, err := config.Load(path, a.env)
	if err != nil {
		return err
	}
	if flags.Lookup(flagLogLevel) != nil {
		if level := cli.MustGet(flags.GetString(flagLogLevel)); len(level) > 0 {
			conf.Logging.Level = level
			if err := conf.Validate(); err != nil {
				return cli.NewUsageError("%w", err)
			}
		}
	}
	log, closeLog, err := conf.Logging.NewLogger(a.stderr)
	if err != nil {
		return err
	}
	a.conf, a.log, a.closeLog = conf, log, closeLog
	return nil
}

func (a *app) close() {
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}
