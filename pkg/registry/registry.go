// Package registry holds the tool and agent factories available to the engine.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"slices"
	"strings"
	"sync"

	"github.com/fera765/flui/pkg/protocol"
)

var (
	ErrToolTypeNotRegistered      = errors.New("tool type not registered")
	ErrAgentProviderNotRegistered = errors.New("agent provider not registered")
)

type Registry struct {
	logger         *slog.Logger
	mu             sync.RWMutex
	toolFactories  map[string]protocol.ToolFactory
	agentFactories map[string]protocol.AgentFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:         log,
		toolFactories:  make(map[string]protocol.ToolFactory),
		agentFactories: make(map[string]protocol.AgentFactory),
	}
}

// LoadToolPlugins opens every .so under <pluginsPath>/tools and returns its
// exported Tool symbol.
func (r *Registry) LoadToolPlugins(ctx context.Context, pluginsPath string) ([]protocol.ToolFactory, error) {
	return loadPlugin[protocol.ToolFactory](ctx, r.logger, pluginsPath, "Tool")
}

// LoadAgentPlugins opens every .so under <pluginsPath>/agents and returns its
// exported Agent symbol.
func (r *Registry) LoadAgentPlugins(ctx context.Context, pluginsPath string) ([]protocol.AgentFactory, error) {
	return loadPlugin[protocol.AgentFactory](ctx, r.logger, pluginsPath, "Agent")
}

func (r *Registry) RegisterTool(factory protocol.ToolFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.toolFactories[factory.ID()] = factory
}

func (r *Registry) RegisterAgent(factory protocol.AgentFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.agentFactories[factory.ID()] = factory
}

func (r *Registry) HasTool(toolType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.toolFactories[toolType]

	return ok
}

func (r *Registry) HasAgent(provider string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.agentFactories[provider]

	return ok
}

func (r *Registry) CreateTool(ctx context.Context, toolType string, config map[string]any) (protocol.ToolExecutor, error) {
	r.mu.RLock()
	factory, ok := r.toolFactories[toolType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolTypeNotRegistered, toolType)
	}

	return factory.Create(ctx, config)
}

func (r *Registry) CreateAgent(ctx context.Context, provider string, config map[string]any) (protocol.Agent, error) {
	r.mu.RLock()
	factory, ok := r.agentFactories[provider]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAgentProviderNotRegistered, provider)
	}

	return factory.Create(ctx, config)
}

// ToolFactories returns the registered tool factories sorted by id.
func (r *Registry) ToolFactories() []protocol.ToolFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.ToolFactory, 0, len(r.toolFactories))
	for _, factory := range r.toolFactories {
		factories = append(factories, factory)
	}

	slices.SortFunc(factories, func(a, b protocol.ToolFactory) int {
		return strings.Compare(a.ID(), b.ID())
	})

	return factories
}

// AgentFactories returns the registered agent factories sorted by id.
func (r *Registry) AgentFactories() []protocol.AgentFactory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factories := make([]protocol.AgentFactory, 0, len(r.agentFactories))
	for _, factory := range r.agentFactories {
		factories = append(factories, factory)
	}

	slices.SortFunc(factories, func(a, b protocol.AgentFactory) int {
		return strings.Compare(a.ID(), b.ID())
	})

	return factories
}

func loadPlugin[T any](ctx context.Context, logger *slog.Logger, pluginsPath string, symbolName string) ([]T, error) {
	if pluginsPath == "" {
		return nil, nil
	}

	rootPath := filepath.Join(pluginsPath, strings.ToLower(symbolName)+"s")

	var pluginPathList []string

	err := fs.WalkDir(os.DirFS(rootPath), ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() && strings.HasSuffix(path, ".so") {
			pluginPathList = append(pluginPathList, path)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s plugins: %w", symbolName, err)
	}

	l := logger.With(slog.String("path", rootPath), slog.String("type", symbolName))
	l.InfoContext(ctx, "Loading plugins")

	pluginList := make([]T, 0, len(pluginPathList))

	for _, p := range pluginPathList {
		plg, err := plugin.Open(filepath.Join(rootPath, p))
		if err != nil {
			return nil, fmt.Errorf("failed to open plugin %s: %w", p, err)
		}

		v, err := plg.Lookup(symbolName)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p, err)
		}

		castV, ok := v.(T)
		if !ok {
			// Exported variables are looked up as pointers.
			ptr, isPtr := v.(*T)
			if !isPtr {
				return nil, fmt.Errorf("plugin %s: symbol %s has type %T", p, symbolName, v)
			}

			castV = *ptr
		}

		pluginList = append(pluginList, castV)

		l.InfoContext(ctx, "Loaded plugin", slog.String("plugin", p))
	}

	return pluginList, nil
}
