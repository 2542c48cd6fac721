package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskmaster/internal/client"
)

// Env is what a command runs with. Client is authenticated when the command
// needs auth.
type Env struct {
	Config *Config
	Client *client.Client
	UserID string
	Logger *zap.Logger
	Out    io.Writer
	Err    io.Writer
}

type Command interface {
	Name() string
	Synopsis() string
	Usage() string
	NeedsAuth() bool
	RegisterFlags(fs *flag.FlagSet)
	Run(ctx context.Context, env *Env, args []string) int
}

type Registry struct {
	cmds map[string]Command
}

func NewRegistry(cmds ...Command) *Registry {
	r := &Registry{cmds: make(map[string]Command)}
	for _, c := range cmds {
		if _, dup := r.cmds[c.Name()]; dup {
			panic(fmt.Sprintf("command already registered: %s", c.Name()))
		}
		r.cmds[c.Name()] = c
	}
	return r
}

func (r *Registry) Find(name string) (Command, bool) {
	c, ok := r.cmds[name]
	return c, ok
}

// All returns the commands sorted by name.
func (r *Registry) All() []Command {
	names := make([]string, 0, len(r.cmds))
	for name := range r.cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Command, len(names))
	for i, name := range names {
		out[i] = r.cmds[name]
	}
	return out
}

// DefaultRegistry builds a fresh set of commands. Commands keep flag state,
// so each run gets its own.
func DefaultRegistry() *Registry {
	r := NewRegistry(
		&SignupCmd{},
		&LoginCmd{},
		&LogoutCmd{},
		&WhoamiCmd{},
		&ListCmd{},
		&AddCmd{},
		&EditCmd{},
		&StatusCmd{},
		&RmCmd{},
		&WatchCmd{},
	)
	r.cmds["help"] = &HelpCmd{registry: r}
	return r
}
