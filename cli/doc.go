/*
Package cli provides an opinionated structure for a CLI with sub-commands.

  - User-visible output goes to STDERR by default, through a configurable [Printer].
  - This package uses [pflag] for posix style flags.
  - Flags are NOT interspersed. This makes flag and argument parsing consistent and predictable.
  - There are no global flags. Shared setup that depends on a command's flags is done with [CommandSet.Before] hooks.
  - Sub-command aliases are supported as additional, optional parameters to [CommandSet.AddCommand].

# Invocation

Invoking a CLI with sub-commands always follows this form:

	CLI_NAME [SUB-COMMAND...] [FLAGS...] [ARGS...]

Just calling CLI_NAME should print usage information, which is what [CommandSet.RespondUsage] is for.

# Usage

The '-h' and '--help' flags are set up for every [Command], with input from the developer through [Command.Usage].
A [CommandFunc] that returns a [UsageError] gets the error and usage information printed for it, and so do flag parsing errors.

# Cancellation

Every [CommandFunc] receives the context given to [CommandSet.Exec].
Long-running commands should stop when it's done, so a signal-aware context gives a clean shutdown.

[pflag]: https://github.com/spf13/pflag
*/
package cli
