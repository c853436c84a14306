package main

import (
	"context"
	"github.com/saylorsolutions/pvdispatch/cli"
	flag "github.com/spf13/pflag"
)

func (a *app) configCommand(set *cli.CommandSet) {
	cmd := set.AddCommand("config", "Prints the effective configuration as YAML", "conf")
	addConfigFlags(cmd.Flags())
	cmd.Usage("[FLAGS]")
	cmd.Does(func(_ context.Context, _ *flag.FlagSet, _ *cli.Printer) error {
		return a.conf.Encode(a.stdout)
	})
}
