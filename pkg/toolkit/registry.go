package toolkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/event"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/observability"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/registry"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/security"
)

// Entry is one registered tool with its origin.
type Entry struct {
	Tool       Tool
	Source     Source
	SourceType string
	Name       string
}

// RegistryError wraps registry failures with component and action context.
type RegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}

func newRegistryError(action, message string, err error) *RegistryError {
	return &RegistryError{
		Component: "ToolkitRegistry",
		Action:    action,
		Message:   message,
		Err:       err,
	}
}

// Registry holds all discovered tools and executes them behind the
// blocklist with tracing, metrics, and event emission.
type Registry struct {
	*registry.BaseRegistry[Entry]

	blocklist *security.Blocklist
	emitter   *event.Emitter
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBlocklist enables blocklist checks on Execute.
func WithBlocklist(b *security.Blocklist) RegistryOption {
	return func(r *Registry) {
		r.blocklist = b
	}
}

// WithEmitter enables tool lifecycle events.
func WithEmitter(e *event.Emitter) RegistryOption {
	return func(r *Registry) {
		r.emitter = e
	}
}

// NewRegistry creates an empty toolkit registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		BaseRegistry: registry.NewBaseRegistry[Entry](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterSource discovers the source's tools and registers every one.
func (r *Registry) RegisterSource(ctx context.Context, source Source) error {
	name := source.GetName()
	if name == "" {
		return newRegistryError("RegisterSource", "source name cannot be empty", nil)
	}

	if err := source.DiscoverTools(ctx); err != nil {
		return newRegistryError("RegisterSource",
			fmt.Sprintf("failed to discover tools from source %s", name), err)
	}

	for _, info := range source.ListTools() {
		tool, exists := source.GetTool(info.Name)
		if !exists {
			continue
		}

		entry := Entry{
			Tool:       tool,
			Source:     source,
			SourceType: source.GetType(),
			Name:       info.Name,
		}

		if err := r.Register(info.Name, entry); err != nil {
			return newRegistryError("RegisterSource",
				fmt.Sprintf("failed to register tool %s", info.Name), err)
		}
	}

	return nil
}

// DiscoverAll re-runs discovery on every known source. A failing source is
// logged and skipped; the rest keep their tools.
func (r *Registry) DiscoverAll(ctx context.Context) error {
	sources := make(map[string]Source)
	for _, entry := range r.List() {
		sources[entry.Source.GetName()] = entry.Source
	}

	r.Clear()

	for sourceName, source := range sources {
		if err := source.DiscoverTools(ctx); err != nil {
			slog.Warn("Failed to discover tools from source", "source", sourceName, "error", err)
			continue
		}

		for _, info := range source.ListTools() {
			tool, exists := source.GetTool(info.Name)
			if !exists {
				slog.Warn("Tool listed but not available", "tool", info.Name, "source", sourceName)
				continue
			}

			if _, taken := r.Get(info.Name); taken {
				slog.Warn("Tool name conflict, skipping", "tool", info.Name, "source", sourceName)
				continue
			}

			entry := Entry{
				Tool:       tool,
				Source:     source,
				SourceType: source.GetType(),
				Name:       info.Name,
			}

			if err := r.Register(info.Name, entry); err != nil {
				return newRegistryError("DiscoverAll",
					fmt.Sprintf("failed to register tool %s", info.Name), err)
			}
		}
	}

	return nil
}

// GetTool returns the named tool.
func (r *Registry) GetTool(name string) (Tool, error) {
	entry, exists := r.Get(name)
	if !exists {
		return nil, newRegistryError("GetTool", fmt.Sprintf("tool %s not found", name), nil)
	}
	return entry.Tool, nil
}

// ListTools returns all tools sorted by name, stamped with their source.
func (r *Registry) ListTools() []Info {
	var tools []Info
	for _, entry := range r.List() {
		info := entry.Tool.GetInfo()
		info.Source = entry.Source.GetName()
		tools = append(tools, info)
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	return tools
}

// ListBySource groups tool infos by source name.
func (r *Registry) ListBySource() map[string][]Info {
	result := make(map[string][]Info)
	for _, entry := range r.List() {
		sourceName := entry.Source.GetName()
		result[sourceName] = append(result[sourceName], entry.Tool.GetInfo())
	}
	return result
}

// Execute runs the named tool through the blocklist, wrapped in a span,
// recorded in metrics, and announced on the event bus. The result carries
// the wall-clock execution time.
func (r *Registry) Execute(ctx context.Context, toolName string, args map[string]any) (Result, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("alita.toolkit")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String(observability.AttrToolName, toolName),
		),
	)
	defer span.End()

	metrics := observability.GetGlobalMetrics()

	if r.blocklist != nil {
		if err := r.blocklist.Check(toolName); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "tool blocked")
			metrics.RecordToolBlocked(ctx, toolName)

			var blocked *security.BlockedError
			payload := map[string]any{"tool": toolName}
			if errors.As(err, &blocked) {
				payload["rule"] = blocked.Rule
			}
			r.emit(ctx, event.ToolBlocked, payload)

			return Result{
				Success:  false,
				Error:    err.Error(),
				ToolName: toolName,
			}, err
		}
	}

	tool, err := r.GetTool(toolName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool not found")
		metrics.RecordToolExecution(ctx, toolName, time.Since(startTime), err)

		return Result{
			Success:  false,
			Error:    err.Error(),
			ToolName: toolName,
		}, err
	}

	result, execErr := tool.Execute(ctx, args)
	duration := time.Since(startTime)

	result.ToolName = toolName
	result.ExecutionTime = duration

	var recordErr error
	switch {
	case execErr != nil:
		recordErr = execErr
		span.RecordError(execErr)
		span.SetStatus(codes.Error, execErr.Error())
	case !result.Success:
		recordErr = fmt.Errorf("%s", result.Error)
		span.RecordError(recordErr)
		span.SetStatus(codes.Error, result.Error)
	default:
		span.SetStatus(codes.Ok, "success")
	}
	metrics.RecordToolExecution(ctx, toolName, duration, recordErr)

	span.SetAttributes(
		attribute.Bool("tool.success", result.Success),
		attribute.Int64("tool.duration_ms", duration.Milliseconds()),
	)

	r.emit(ctx, event.ToolExecuted, map[string]any{
		"tool":        toolName,
		"success":     result.Success,
		"duration_ms": duration.Milliseconds(),
	})

	return result, execErr
}

// GetToolSource returns the source name of a registered tool.
func (r *Registry) GetToolSource(toolName string) (string, error) {
	entry, exists := r.Get(toolName)
	if !exists {
		return "", newRegistryError("GetToolSource",
			fmt.Sprintf("tool %s not found", toolName), nil)
	}
	return entry.Source.GetName(), nil
}

// RemoveSource unregisters every tool of the named source and closes it.
func (r *Registry) RemoveSource(sourceName string) error {
	var source Source
	for _, entry := range r.List() {
		if entry.Source.GetName() != sourceName {
			continue
		}
		source = entry.Source
		if err := r.Remove(entry.Name); err != nil {
			return newRegistryError("RemoveSource",
				fmt.Sprintf("failed to remove tool %s", entry.Name), err)
		}
	}

	if source != nil {
		if err := source.Close(); err != nil {
			slog.Warn("Failed to close source", "source", sourceName, "error", err)
		}
	}
	return nil
}

// Close closes every source exactly once.
func (r *Registry) Close() error {
	closed := make(map[string]bool)
	for _, entry := range r.List() {
		name := entry.Source.GetName()
		if closed[name] {
			continue
		}
		closed[name] = true
		if err := entry.Source.Close(); err != nil {
			slog.Warn("Failed to close source", "source", name, "error", err)
		}
	}
	r.Clear()
	return nil
}

func (r *Registry) emit(ctx context.Context, eventType string, payload map[string]any) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(ctx, eventType, payload)
}
