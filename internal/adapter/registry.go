package adapter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/adapterkit/dap-client-go/internal/errors"
)

// Kind identifies a debug adapter family.
type Kind string

// Built-in adapter kinds. Additional kinds can be registered at startup.
const (
	KindPython Kind = "python"
	KindGo     Kind = "go"
	KindLLDB   Kind = "lldb"
	KindGDB    Kind = "gdb"
	KindNode   Kind = "node"
)

// Command is a resolved adapter invocation: an executable and its arguments.
type Command struct {
	Path string
	Args []string
}

// Resolver locates the executable command for one adapter kind, or signals
// not found with a *errors.AdapterNotFoundError.
type Resolver interface {
	Resolve(ctx context.Context) (Command, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context) (Command, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context) (Command, error) {
	return f(ctx)
}

// Registry maps adapter kinds to resolvers. Resolvers are registered
// explicitly; there is no dynamic name-based lookup.
type Registry struct {
	log *slog.Logger

	mu        sync.RWMutex
	resolvers map[Kind]Resolver
}

// NewRegistry creates a registry pre-populated with the built-in resolvers.
//
// KindNode has no built-in entry: a JavaScript adapter needs an explicit
// entry-point path, supplied via NewScriptResolver and Register.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := &Registry{
		log:       log.With("component", "adapter_registry"),
		resolvers: make(map[Kind]Resolver, 8),
	}

	r.Register(KindPython, &execResolver{
		kind:       KindPython,
		candidates: []string{"python3", "python"},
		args:       []string{"-m", "debugpy.adapter"},
	})
	r.Register(KindGo, &execResolver{
		kind:       KindGo,
		candidates: []string{"dlv"},
		args:       []string{"dap"},
	})
	r.Register(KindLLDB, &execResolver{
		kind:       KindLLDB,
		candidates: []string{"lldb-dap", "lldb-vscode"},
	})
	r.Register(KindGDB, &execResolver{
		kind:       KindGDB,
		candidates: []string{"gdb"},
		args:       []string{"-i", "dap"},
	})

	return r
}

// Register installs a resolver for kind, replacing any previous one.
func (r *Registry) Register(kind Kind, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolvers[kind] = resolver
}

// Resolve locates the adapter command for kind.
func (r *Registry) Resolve(ctx context.Context, kind Kind) (Command, error) {
	r.mu.RLock()
	resolver, ok := r.resolvers[kind]
	r.mu.RUnlock()

	if !ok {
		r.log.Warn("No resolver registered for adapter kind", "kind", kind)

		return Command{}, &errors.AdapterNotFoundError{Kind: string(kind)}
	}

	cmd, err := resolver.Resolve(ctx)
	if err != nil {
		return Command{}, err
	}

	r.log.Debug("Resolved adapter", "kind", kind, "path", cmd.Path, "args", cmd.Args)

	return cmd, nil
}

// execResolver finds the first of several candidate executables on PATH.
type execResolver struct {
	kind       Kind
	candidates []string
	args       []string
}

// Resolve implements Resolver.
func (r *execResolver) Resolve(_ context.Context) (Command, error) {
	searched := make([]string, 0, len(r.candidates))

	for _, name := range r.candidates {
		if path, err := exec.LookPath(name); err == nil {
			return Command{Path: path, Args: r.args}, nil
		}

		searched = append(searched, name)
	}

	return Command{}, &errors.AdapterNotFoundError{
		Kind:          string(r.kind),
		SearchedPaths: searched,
	}
}

// NewScriptResolver resolves a JavaScript adapter entry point run under
// node, the way editor-extension adapters ship (an out/.../main.js file).
func NewScriptResolver(kind Kind, entry string) Resolver {
	return ResolverFunc(func(_ context.Context) (Command, error) {
		if _, err := os.Stat(entry); err != nil {
			return Command{}, &errors.AdapterNotFoundError{
				Kind:          string(kind),
				SearchedPaths: []string{entry},
			}
		}

		nodePath, err := exec.LookPath("node")
		if err != nil {
			return Command{}, &errors.AdapterNotFoundError{
				Kind:          string(kind),
				SearchedPaths: []string{"node"},
			}
		}

		return Command{Path: nodePath, Args: []string{entry}}, nil
	})
}
