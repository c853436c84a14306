package cli

import (
	"context"
	"errors"
	"fmt"
	flag "github.com/spf13/pflag"
	"io"
	"regexp"
	"slices"
	"strings"
)

var (
	HelpPatterns = []string{"--help", "-h"} // HelpPatterns is a slice of flags that should trigger the output of usage information with the top-level [CommandSet].

	keyCleansePattern = regexp.MustCompile(`\s`)
)

// CommandFunc is a function that may be executed within a [Command].
// The context is cancelled when the invocation should stop, like when the process receives an interrupt.
type CommandFunc = func(ctx context.Context, flags *flag.FlagSet, printer *Printer) error

// Hook runs after flags are parsed and before a [CommandFunc].
// Returning an error prevents the [Command] from running.
type Hook = func(ctx context.Context, flags *flag.FlagSet) error

// Command is an executable function in a CLI.
// It should be linked to a [CommandSet] to establish a tree of commands available to the user.
type Command struct {
	CommandSet
	flags      *flag.FlagSet
	exec       CommandFunc
	key        string
	shortUsage string
	aliases    []string
}

func cleanseKey(key string) string {
	return keyCleansePattern.ReplaceAllString(strings.ToLower(key), "")
}

func newCommand(key string, parent *CommandSet, shortUsage string) *Command {
	key = cleanseKey(key)
	fs := flag.NewFlagSet(key, flag.ContinueOnError)
	fs.BoolP("help", "h", false, "Prints this usage information")
	fs.SetInterspersed(false)
	cmd := &Command{flags: fs, key: key, shortUsage: shortUsage}
	cmd.CommandSet.printer = parent.Printer()
	cmd.CommandSet.up = parent
	cmd.CommandSet.path = strings.TrimSpace(parent.path + " " + key)
	fs.SetOutput(io.Discard)
	cmd.Usage("").Does(func(_ context.Context, flags *flag.FlagSet, _ *Printer) error {
		flags.Usage()
		return nil
	})
	return cmd
}

// Does specifies the [CommandFunc] that should be executed by this [Command].
func (c *Command) Does(commandFunc CommandFunc) *Command {
	if commandFunc == nil {
		return c
	}
	c.exec = commandFunc
	return c
}

// Flags returns the [flag.FlagSet] for this [Command].
func (c *Command) Flags() *flag.FlagSet {
	return c.flags
}

// Usage allows specifying a longer description of the [Command] that will be output when a [HelpPatterns] flag is passed.
// The parent command path is prepended, and the flag and sub-command usages are appended.
func (c *Command) Usage(format string, args ...any) *Command {
	text := fmt.Sprintf(format, args...)
	if len(text) > 0 {
		text = "USAGE:\n" + strings.TrimSpace(c.path+" "+text)
	}
	c.flags.Usage = func() {
		var buf strings.Builder
		buf.WriteString(c.shortUsage + "\n")
		if len(text) > 0 {
			buf.WriteString("\n" + strings.TrimSuffix(text, "\n") + "\n")
		}
		buf.WriteString("\nFLAGS\n")
		buf.WriteString(c.flags.FlagUsages())
		if len(c.commands) > 0 {
			buf.WriteString("\nCOMMANDS\n")
			buf.WriteString(c.CommandUsages())
		}
		c.printer.Print(buf.String())
	}
	return c
}

// Exec executes the command with given arguments, parsing flags.
// If the first argument names a sub-command, then that is executed instead.
func (c *Command) Exec(ctx context.Context, args []string) error {
	if err := c.CommandSet.Exec(ctx, args); err == nil || !errors.Is(err, ErrUnknownCommand) {
		return err
	}
	if err := c.flags.Parse(args); err != nil {
		c.printer.Println(err)
		return &UsageError{wrapped: err}
	}
	if MustGet(c.flags.GetBool("help")) {
		c.flags.Usage()
		return nil
	}
	err := c.runHooks(ctx, c.flags)
	if err == nil {
		err = c.exec(ctx, c.flags, c.printer)
	}
	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		c.printer.Println(usageErr.Error())
		c.flags.Usage()
	}
	return err
}

// CommandSet is a group of [Command].
type CommandSet struct {
	commands map[string]*Command
	aliases  map[string]*Command
	printer  *Printer
	path     string
	up       *CommandSet
	hooks    []Hook
}

// NewCommandSet is used to set up a top level [CommandSet] as the root of a CLI's command structure.
// The path should contain the words used to invoke this CommandSet, and is used in usage information.
func NewCommandSet(path ...string) *CommandSet {
	return &CommandSet{printer: NewPrinter(), path: strings.Join(path, " ")}
}

// Path returns the words used to invoke this [CommandSet].
func (s *CommandSet) Path() string {
	return s.path
}

// Before adds a [Hook] that runs before any [Command] in this set or its descendants.
// Hooks of outer sets run first.
func (s *CommandSet) Before(hook Hook) *CommandSet {
	if hook == nil {
		panic("nil hook")
	}
	s.hooks = append(s.hooks, hook)
	return s
}

func (s *CommandSet) runHooks(ctx context.Context, flags *flag.FlagSet) error {
	if s.up != nil {
		if err := s.up.runHooks(ctx, flags); err != nil {
			return err
		}
	}
	for _, hook := range s.hooks {
		if err := hook(ctx, flags); err != nil {
			return err
		}
	}
	return nil
}

// AddCommand adds a sub-command to this [CommandSet].
// The key parameter will be cleansed to remove spaces, and normalize to lower-case.
// Aliases may be added as a way to support shorter variants of the same [Command].
func (s *CommandSet) AddCommand(key, shortUsage string, aliases ...string) *Command {
	cmd := newCommand(key, s, shortUsage)
	if s.commands == nil {
		s.commands = map[string]*Command{}
	}
	s.commands[cmd.key] = cmd
	for _, alias := range aliases {
		alias = cleanseKey(alias)
		if len(alias) == 0 {
			continue
		}
		if s.aliases == nil {
			s.aliases = map[string]*Command{}
		}
		s.aliases[alias] = cmd
		cmd.aliases = append(cmd.aliases, alias)
	}
	slices.Sort(cmd.aliases)
	return cmd
}

// Printer returns the cached [Printer] for this [CommandSet].
func (s *CommandSet) Printer() *Printer {
	if s.printer == nil {
		s.printer = NewPrinter()
	}
	return s.printer
}

// Exec executes this [CommandSet].
// It's expected that the first 1+ arguments include the key/alias for a sub-command.
func (s *CommandSet) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no arguments", ErrUnknownCommand)
	}
	key := strings.ToLower(args[0])
	cmd, ok := s.commands[key]
	if !ok {
		cmd, ok = s.aliases[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
		}
	}
	return cmd.Exec(ctx, args[1:])
}

// RespondUsage will print usage information if args is empty, or starts with one of [HelpPatterns].
// If usage information was printed, then true will be returned.
func (s *CommandSet) RespondUsage(args []string, format string, vals ...any) bool {
	if len(args) > 0 && !slices.Contains(HelpPatterns, args[0]) {
		return false
	}
	text := fmt.Sprintf(format, vals...)
	if len(text) > 0 {
		text = "\n\n" + strings.TrimSuffix(text, "\n")
	}
	s.Printer().Printf("%s%s\n\nCOMMANDS:\n%s", s.path, text, s.CommandUsages())
	return true
}

// CommandUsages returns a string including the usage information for sub-commands in this [CommandSet].
// The sub-command keys will be sorted alphabetically before output.
func (s *CommandSet) CommandUsages() string {
	var (
		buf    strings.Builder
		keys   = make([]string, 0, len(s.commands))
		labels = make(map[string]string, len(s.commands))
		maxLen int
	)
	for key, cmd := range s.commands {
		keys = append(keys, key)
		labels[key] = strings.Join(append([]string{key}, cmd.aliases...), ", ")
		maxLen = max(maxLen, len(labels[key]))
	}
	slices.Sort(keys)
	fmtStr := fmt.Sprintf("  %%-%ds\t%%s\n", maxLen)
	for _, key := range keys {
		buf.WriteString(fmt.Sprintf(fmtStr, labels[key], s.commands[key].shortUsage))
	}
	return buf.String()
}
