package cli

import (
	"bytes"
	"context"
	"errors"
	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestCommand_Exec(t *testing.T) {
	set, out := testPrinterSet()
	cmd := set.AddCommand("test", "test command")
	assert.NoError(t, cmd.Exec(context.Background(), nil))
	assert.Contains(t, out.String(), "test command", "The default CommandFunc prints usage")

	executed := false
	cmd.Does(func(_ context.Context, _ *flag.FlagSet, _ *Printer) error {
		executed = true
		return nil
	})
	assert.NoError(t, cmd.Exec(context.Background(), nil))
	assert.True(t, executed)
}

func TestCommandSet_Exec(t *testing.T) {
	set, _ := testPrinterSet()
	assert.ErrorIs(t, set.Exec(context.Background(), nil), ErrUnknownCommand)

	cmd := set.AddCommand("test", "test command")
	assert.NoError(t, set.Exec(context.Background(), []string{"test"}))

	executed := false
	cmd.Does(func(_ context.Context, _ *flag.FlagSet, _ *Printer) error {
		executed = true
		return nil
	})
	assert.NoError(t, set.Exec(context.Background(), []string{"test"}))
	assert.True(t, executed)

	assert.ErrorIs(t, set.Exec(context.Background(), []string{"Does", "not", "exist"}), ErrUnknownCommand)
}

func TestCommand_Context(t *testing.T) {
	type key struct{}
	set, _ := testPrinterSet()
	ctx := context.WithValue(context.Background(), key{}, "value")
	set.AddCommand("test", "test command").Does(func(ctx context.Context, _ *flag.FlagSet, _ *Printer) error {
		assert.Equal(t, "value", ctx.Value(key{}))
		return nil
	})
	assert.NoError(t, set.Exec(ctx, []string{"test"}))
}

func TestCommand_AddSubCommand(t *testing.T) {
	cmdExecuted := 0
	subExecuted := 0
	set := testCommandSet(t, &cmdExecuted, &subExecuted)

	assert.NoError(t, set.Exec(context.Background(), []string{"test", "-h"}))
	assert.Equal(t, 0, cmdExecuted, "Help should not execute the command")

	assert.NoError(t, set.Exec(context.Background(), []string{"test", "blah"}), "Should execute test without error")
	assert.Equal(t, 1, cmdExecuted)
	assert.Equal(t, 0, subExecuted)

	assert.NoError(t, set.Exec(context.Background(), []string{"test", "SUB"}))
	assert.Equal(t, 1, cmdExecuted)
	assert.Equal(t, 1, subExecuted)
}

func TestCommandSet_AddCommand_Aliases(t *testing.T) {
	cmdExecuted := 0
	subExecuted := 0
	set := testCommandSet(t, &cmdExecuted, &subExecuted)
	assert.NoError(t, set.Exec(context.Background(), []string{"t", "a"}), "Should execute test without error")
	assert.Equal(t, 0, cmdExecuted)
	assert.Equal(t, 1, subExecuted)

	assert.NoError(t, set.Exec(context.Background(), []string{"test", "b"}), "Should execute test without error")
	assert.Equal(t, 0, cmdExecuted)
	assert.Equal(t, 2, subExecuted)

	assert.Equal(t, "  test, t\ttest command\n", set.CommandUsages())
}

func TestCommandSet_Before(t *testing.T) {
	var (
		set, _  = testPrinterSet()
		order   []string
		errHook = errors.New("hook failed")
	)
	cmd := set.AddCommand("test", "test command")
	cmd.Flags().String("message", "", "Sets a message")
	set.Before(func(_ context.Context, flags *flag.FlagSet) error {
		order = append(order, "outer:"+MustGet(flags.GetString("message")))
		return nil
	})
	cmd.Before(func(_ context.Context, _ *flag.FlagSet) error {
		order = append(order, "inner")
		return nil
	})
	cmd.Does(func(_ context.Context, _ *flag.FlagSet, _ *Printer) error {
		order = append(order, "exec")
		return nil
	})
	require.NoError(t, set.Exec(context.Background(), []string{"test", "--message", "hi"}))
	assert.Equal(t, []string{"outer:hi", "inner", "exec"}, order)

	set.Before(func(_ context.Context, _ *flag.FlagSet) error {
		return errHook
	})
	order = nil
	assert.ErrorIs(t, set.Exec(context.Background(), []string{"test"}), errHook)
	assert.Equal(t, []string{"outer:hi"}, order, "A failing hook should stop later hooks and the command")
}

func TestCommand_BadFlag(t *testing.T) {
	set, out := testPrinterSet()
	set.AddCommand("test", "test command").Does(func(_ context.Context, _ *flag.FlagSet, _ *Printer) error {
		t.Error("Should not execute with bad flags")
		return nil
	})
	err := set.Exec(context.Background(), []string{"test", "--nope"})
	assert.True(t, IsUsageError(err))
	assert.Contains(t, out.String(), "unknown flag: --nope")
	assert.Contains(t, out.String(), "FLAGS")
}

func TestCommandSet_RespondUsage(t *testing.T) {
	cmdExecuted := 0
	subExecuted := 0
	set := testCommandSet(t, &cmdExecuted, &subExecuted)
	out := new(bytes.Buffer)
	set.Printer().Redirect(out)
	assert.True(t, set.RespondUsage([]string{HelpPatterns[0], "something"}, "Printed usage"), "Should have responded with usage")
	assert.Contains(t, out.String(), "Printed usage")
	assert.Contains(t, out.String(), "test, t")
	assert.True(t, set.RespondUsage(nil, ""), "No arguments should print usage")
	assert.False(t, set.RespondUsage([]string{"test"}, ""))
}

func TestMustGet(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("count", 3, "")
	assert.Equal(t, 3, MustGet(fs.GetInt("count")))
	assert.Panics(t, func() {
		MustGet(fs.GetString("count"))
	})
}

func TestUsageError(t *testing.T) {
	errTesting := errors.New("test")
	err := NewUsageError("%w", errTesting)
	assert.ErrorIs(t, err, &UsageError{})
	assert.ErrorIs(t, err, errTesting)
	assert.True(t, IsUsageError(err))
	assert.False(t, IsUsageError(errTesting))
	assert.Equal(t, "usage error: test", err.Error())
	assert.Equal(t, "usage error", new(UsageError).Error())
}

func testPrinterSet() (*CommandSet, *bytes.Buffer) {
	set := NewCommandSet("commands")
	out := new(bytes.Buffer)
	set.Printer().Redirect(out)
	return set, out
}

func testCommandSet(t *testing.T, cmdExecuted, subExecuted *int) *CommandSet {
	set, _ := testPrinterSet()
	cmd := set.AddCommand("test", "test command", "t")
	cmd.Flags().String("message", "", "Sets a message")
	cmd.Does(func(_ context.Context, _ *flag.FlagSet, _ *Printer) error {
		*cmdExecuted++
		return nil
	})

	sub := cmd.AddCommand("sub", "test subcommand", "a", "b")
	assert.Equal(t, "commands test sub", sub.Path())
	sub.Does(func(_ context.Context, _ *flag.FlagSet, _ *Printer) error {
		*subExecuted++
		return nil
	})
	return set
}
