package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/BuzzLyutic/taskmaster/internal/client"
	"github.com/BuzzLyutic/taskmaster/internal/model"
	"github.com/BuzzLyutic/taskmaster/internal/tasksync"
)

type Dispatcher struct {
	registry *Registry
	logger   *zap.Logger
	level    *zap.AtomicLevel
}

func NewDispatcher(registry *Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// SetLevel lets -debug lower the logger's level.
func (d *Dispatcher) SetLevel(level zap.AtomicLevel) {
	d.level = &level
}

// Run parses global flags, then the command and its flags, and returns the
// process exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	global := flag.NewFlagSet("taskctl", flag.ContinueOnError)
	global.SetOutput(io.Discard)
	server := global.String("server", "", "")
	configDir := global.String("config", "", "")
	debug := global.Bool("debug", false, "")

	if err := global.Parse(args); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return UserError
	}

	rest := global.Args()
	name := "list"
	if len(rest) > 0 {
		name, rest = rest[0], rest[1:]
	}

	cmd, ok := d.registry.Find(name)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", name)
		return UserError
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(rest); err != nil {
		fmt.Fprintf(errOut, "error: %s\nusage: %s\n", err, cmd.Usage())
		return UserError
	}

	cfg := NewConfig(*configDir, *server)
	cfg.Debug = *debug
	if cfg.Debug && d.level != nil {
		d.level.SetLevel(zap.DebugLevel)
	}

	env := &Env{
		Config: cfg,
		Client: client.New(cfg.Server),
		Logger: d.logger,
		Out:    out,
		Err:    errOut,
	}

	if cmd.NeedsAuth() {
		if code := d.authenticate(ctx, env, errOut); code != Success {
			return code
		}
	}

	return cmd.Run(ctx, env, fs.Args())
}

func (d *Dispatcher) authenticate(ctx context.Context, env *Env, errOut io.Writer) int {
	tok, err := env.Config.LoadToken()
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return AuthError
	}

	cfg := env.Config
	ts := env.Client.TokenSource(ctx, tok, func(fresh *oauth2.Token) {
		if err := cfg.SaveToken(fresh); err != nil {
			d.logger.Warn("failed to save refreshed token", zap.Error(err))
		}
	})

	current, err := ts.Token()
	if err != nil {
		fmt.Fprintf(errOut, "error: session expired, log in again: %s\n", err)
		return AuthError
	}
	env.UserID, err = client.UserID(current.AccessToken)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return AuthError
	}

	env.Client = client.New(cfg.Server, client.WithTokenSource(ctx, ts))
	return Success
}

// Store returns a sync store for the signed-in user.
func (e *Env) Store() *tasksync.Store {
	s := tasksync.NewStore(e.Client, tasksync.WithLogger(e.Logger))
	s.SetUser(e.UserID)
	return s
}

// fail prints err and maps it to an exit code.
func (e *Env) fail(err error) int {
	fmt.Fprintf(e.Err, "error: %s\n", err)
	return ExitCode(err)
}

func ExitCode(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, client.ErrUnauthorized),
		errors.Is(err, tasksync.ErrNotAuthenticated),
		errors.Is(err, ErrNotLoggedIn):
		return AuthError
	case errors.Is(err, tasksync.ErrValidation),
		errors.Is(err, tasksync.ErrNotFound),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, errUsage),
		errors.Is(err, errAmbiguous):
		return UserError
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return UserError
	}
	return BackendError
}
