package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/BuzzLyutic/taskmaster/internal/model"
	"github.com/BuzzLyutic/taskmaster/internal/tasksync"
)

type ListCmd struct {
	status string
}

func (c *ListCmd) Name() string     { return "list" }
func (c *ListCmd) Synopsis() string { return "List tasks, newest first" }
func (c *ListCmd) Usage() string    { return "taskctl list [-status all|pending|in-progress|completed]" }
func (c *ListCmd) NeedsAuth() bool  { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.status, "status", model.FilterAll, "")
}

func (c *ListCmd) Run(ctx context.Context, env *Env, args []string) int {
	filter, err := model.ParseFilter(c.status)
	if err != nil {
		return env.fail(fmt.Errorf("%w: %s", err, c.status))
	}

	store := env.Store()
	if err := store.Refresh(ctx); err != nil {
		return env.fail(err)
	}
	printTasks(env.Out, store.Tasks(), filter)
	return Success
}

type AddCmd struct {
	description string
	due         string
}

func (c *AddCmd) Name() string     { return "add" }
func (c *AddCmd) Synopsis() string { return "Create a task" }
func (c *AddCmd) Usage() string    { return "taskctl add [-d <description>] [-due YYYY-MM-DD] <title>" }
func (c *AddCmd) NeedsAuth() bool  { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.description, "d", "", "")
	fs.StringVar(&c.due, "due", "", "")
}

func (c *AddCmd) Run(ctx context.Context, env *Env, args []string) int {
	in := tasksync.NewTask{
		Title:       strings.Join(args, " "),
		Description: c.description,
	}
	if c.due != "" {
		d, err := time.Parse("2006-01-02", c.due)
		if err != nil {
			return env.fail(fmt.Errorf("%w: invalid due date %q", errUsage, c.due))
		}
		in.DueDate = &d
	}

	t, err := env.Store().Create(ctx, in)
	if err != nil {
		return env.fail(err)
	}
	fmt.Fprintf(env.Out, "created %s  %s\n", short(t.ID), t.Title)
	return Success
}

type EditCmd struct {
	title       string
	description string
}

func (c *EditCmd) Name() string     { return "edit" }
func (c *EditCmd) Synopsis() string { return "Change a task's title or description" }
func (c *EditCmd) Usage() string    { return "taskctl edit [-title <title>] [-d <description>] <ref>" }
func (c *EditCmd) NeedsAuth() bool  { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.title, "title", "", "")
	fs.StringVar(&c.description, "d", "", "")
}

func (c *EditCmd) Run(ctx context.Context, env *Env, args []string) int {
	if len(args) != 1 {
		return env.fail(fmt.Errorf("%w: %s", errUsage, c.Usage()))
	}
	if c.title == "" && c.description == "" {
		return env.fail(fmt.Errorf("%w: nothing to change", errUsage))
	}

	store := env.Store()
	if err := store.Refresh(ctx); err != nil {
		return env.fail(err)
	}
	t, err := resolveRef(store.Tasks(), args[0])
	if err != nil {
		return env.fail(err)
	}

	if c.title != "" {
		t.Title = c.title
	}
	if c.description != "" {
		t.Description = c.description
	}
	if _, err := store.Update(ctx, t); err != nil {
		return env.fail(err)
	}
	fmt.Fprintln(env.Out, "ok")
	return Success
}

type StatusCmd struct{}

func (c *StatusCmd) Name() string                 { return "status" }
func (c *StatusCmd) Synopsis() string             { return "Move a task to another status" }
func (c *StatusCmd) Usage() string                { return "taskctl status <ref> pending|in-progress|completed" }
func (c *StatusCmd) NeedsAuth() bool              { return true }
func (c *StatusCmd) RegisterFlags(*flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, env *Env, args []string) int {
	if len(args) != 2 {
		return env.fail(fmt.Errorf("%w: %s", errUsage, c.Usage()))
	}
	st, err := model.ParseStatus(args[1])
	if err != nil {
		return env.fail(fmt.Errorf("%w: %s", err, args[1]))
	}

	store := env.Store()
	if err := store.Refresh(ctx); err != nil {
		return env.fail(err)
	}
	t, err := resolveRef(store.Tasks(), args[0])
	if err != nil {
		return env.fail(err)
	}
	if _, err := store.SetStatus(ctx, t.ID, st); err != nil {
		return env.fail(err)
	}
	fmt.Fprintln(env.Out, "ok")
	return Success
}

type RmCmd struct{}

func (c *RmCmd) Name() string                 { return "rm" }
func (c *RmCmd) Synopsis() string             { return "Delete a task" }
func (c *RmCmd) Usage() string                { return "taskctl rm <ref>" }
func (c *RmCmd) NeedsAuth() bool              { return true }
func (c *RmCmd) RegisterFlags(*flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, env *Env, args []string) int {
	if len(args) != 1 {
		return env.fail(fmt.Errorf("%w: %s", errUsage, c.Usage()))
	}

	store := env.Store()
	if err := store.Refresh(ctx); err != nil {
		return env.fail(err)
	}
	t, err := resolveRef(store.Tasks(), args[0])
	if err != nil {
		return env.fail(err)
	}
	if err := store.Delete(ctx, t.ID); err != nil {
		return env.fail(err)
	}
	fmt.Fprintln(env.Out, "ok")
	return Success
}

type WatchCmd struct {
	status string
}

func (c *WatchCmd) Name() string     { return "watch" }
func (c *WatchCmd) Synopsis() string { return "Print the list again whenever it changes" }
func (c *WatchCmd) Usage() string    { return "taskctl watch [-status <status>]" }
func (c *WatchCmd) NeedsAuth() bool  { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.status, "status", model.FilterAll, "")
}

func (c *WatchCmd) Run(ctx context.Context, env *Env, args []string) int {
	filter, err := model.ParseFilter(c.status)
	if err != nil {
		return env.fail(fmt.Errorf("%w: %s", err, c.status))
	}

	var store *tasksync.Store
	store = tasksync.NewStore(env.Client, tasksync.WithLogger(env.Logger), tasksync.WithOnUpdate(func() {
		if store.State() != tasksync.Ready {
			return
		}
		fmt.Fprintf(env.Out, "-- %s\n", time.Now().Format("15:04:05"))
		if err := store.Err(); err != nil {
			fmt.Fprintf(env.Err, "error: %s\n", err)
			return
		}
		printTasks(env.Out, store.Tasks(), filter)
	}))
	store.SetUser(env.UserID)

	err = store.Watch(ctx, env.Client)
	if err == nil || errors.Is(err, context.Canceled) {
		return Success
	}
	return env.fail(err)
}

type HelpCmd struct {
	registry *Registry
}

func (c *HelpCmd) Name() string                 { return "help" }
func (c *HelpCmd) Synopsis() string             { return "Show commands" }
func (c *HelpCmd) Usage() string                { return "taskctl help" }
func (c *HelpCmd) NeedsAuth() bool              { return false }
func (c *HelpCmd) RegisterFlags(*flag.FlagSet) {}

func (c *HelpCmd) Run(_ context.Context, env *Env, _ []string) int {
	fmt.Fprintln(env.Out, "Usage: taskctl [-server URL] [-config DIR] [-debug] <command> [flags] [args]")
	fmt.Fprintln(env.Out)
	fmt.Fprintln(env.Out, "Commands:")
	for _, cmd := range c.registry.All() {
		fmt.Fprintf(env.Out, "  %-8s %s\n", cmd.Name(), cmd.Synopsis())
	}
	return Success
}
