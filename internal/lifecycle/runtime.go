package lifecycle

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type named struct {
	name string
	Component
}

// Named attaches a name used in logs and errors.
func Named(name string, component Component) Component {
	if component == nil {
		return nil
	}
	return named{name: name, Component: component}
}

// Funcs adapts a pair of functions to a Component. Either may be nil.
type Funcs struct {
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

func (f Funcs) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

func (f Funcs) Stop(ctx context.Context) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}

// Runtime starts components in registration order and stops them in reverse.
type Runtime struct {
	components []Component
	started    []Component
	logger     *log.Entry
}

func NewRuntime(components ...Component) *Runtime {
	return &Runtime{
		components: components,
		logger:     log.WithField("object", "Runtime"),
	}
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, component)
}

func (r *Runtime) Start(ctx context.Context) error {
	started := make([]Component, 0, len(r.components))
	for _, component := range r.components {
		if component == nil {
			continue
		}
		if err := component.Start(ctx); err != nil {
			_ = stopComponents(ctx, started)
			return fmt.Errorf("start component %s: %w", nameOf(component), err)
		}
		r.logger.WithField("component", nameOf(component)).Debug("component started")
		started = append(started, component)
	}
	r.started = started
	return nil
}

// Stop stops what Start brought up. Without a prior Start every component is stopped.
func (r *Runtime) Stop(ctx context.Context) error {
	components := r.started
	if components == nil {
		components = r.components
	}
	r.started = []Component{}
	return stopComponents(ctx, components)
}

func stopComponents(ctx context.Context, components []Component) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		if component == nil {
			continue
		}
		if err := component.Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop component %s: %w", nameOf(component), err))
		}
	}
	return stopErr
}

func nameOf(component Component) string {
	if n, ok := component.(named); ok {
		return n.name
	}
	return fmt.Sprintf("%T", component)
}
