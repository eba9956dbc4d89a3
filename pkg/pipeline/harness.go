package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	yaml "gopkg.in/yaml.v3"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/event"
	"github.com/ProjectAlita/alita-sdk-sub007/pkg/observability"
)

// pollInitialInterval seeds the execution-status backoff.
const pollInitialInterval = 500 * time.Millisecond

// pollMaxInterval caps the gap between status polls.
const pollMaxInterval = 10 * time.Second

// Harness drives suites through the platform: for each case it seeds the
// pipeline, runs it, verifies the outcome, and cleans up. Failures are
// recorded on the case result and never abort the suite.
type Harness struct {
	client  *Client
	store   Store
	emitter *event.Emitter
	baseDir string
}

// HarnessOption configures a Harness.
type HarnessOption func(*Harness)

// WithStore persists every suite result after the run.
func WithStore(store Store) HarnessOption {
	return func(h *Harness) {
		h.store = store
	}
}

// WithEmitter announces harness lifecycle events.
func WithEmitter(emitter *event.Emitter) HarnessOption {
	return func(h *Harness) {
		h.emitter = emitter
	}
}

// WithBaseDir resolves relative seed file paths against dir, normally the
// config file's directory.
func WithBaseDir(dir string) HarnessOption {
	return func(h *Harness) {
		h.baseDir = dir
	}
}

// NewHarness creates a harness over the given platform client.
func NewHarness(client *Client, opts ...HarnessOption) *Harness {
	h := &Harness{client: client}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RunSuite executes every case of the suite sequentially and returns the
// aggregate. The returned error covers harness-level problems only; case
// failures live in the result.
func (h *Harness) RunSuite(ctx context.Context, name string, suite *config.SuiteConfig) (*SuiteResult, error) {
	tracer := observability.GetTracer("alita.pipeline")
	ctx, span := tracer.Start(ctx, observability.SpanSuiteRun,
		trace.WithAttributes(attribute.String(observability.AttrSuiteName, name)))
	defer span.End()

	result := &SuiteResult{
		Suite:     name,
		StartedAt: time.Now().UTC(),
	}

	slog.Info("Running suite", "suite", name, "cases", len(suite.Cases))

	for _, caseConfig := range suite.Cases {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		caseResult := h.runCase(ctx, name, suite, caseConfig)
		result.Cases = append(result.Cases, caseResult)
		if caseResult.Success {
			result.Passed++
		} else {
			result.Failed++
			slog.Warn("Case failed", "suite", name, "case", caseResult.Name, "error", caseResult.Error)
		}
	}

	result.Duration = time.Since(result.StartedAt)

	span.SetAttributes(
		attribute.Int("suite.passed", result.Passed),
		attribute.Int("suite.failed", result.Failed),
	)
	if result.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d cases failed", result.Failed, len(result.Cases)))
	} else {
		span.SetStatus(codes.Ok, "all cases passed")
	}

	if h.store != nil {
		if err := h.store.SaveSuite(ctx, result); err != nil {
			slog.Warn("Failed to persist suite result", "suite", name, "error", err)
		}
	}

	slog.Info("Suite finished", "suite", name,
		"passed", result.Passed, "failed", result.Failed, "duration", result.Duration)
	return result, nil
}

// runCase drives one case through seed, run, verify, and cleanup. Any phase
// failure marks the case failed; cleanup still runs per the case's policy.
func (h *Harness) runCase(ctx context.Context, suiteName string, suite *config.SuiteConfig, c *config.CaseConfig) *CaseResult {
	tracer := observability.GetTracer("alita.pipeline")
	ctx, span := tracer.Start(ctx, observability.SpanCaseRun,
		trace.WithAttributes(
			attribute.String(observability.AttrSuiteName, suiteName),
			attribute.String(observability.AttrCaseName, c.Name),
		))
	defer span.End()

	start := time.Now()
	result := &CaseResult{Name: c.Name}

	fail := func(phase string, err error) {
		result.Error = fmt.Sprintf("%s: %v", phase, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result.Error)
	}

	vars := MergeVariables(suite.Variables, c.Seed.Variables)

	// Seed.
	seedStart := time.Now()
	seeded, err := h.seedCase(ctx, c, vars)
	result.Phases.Seed = time.Since(seedStart)
	if err != nil {
		fail("seed", err)
	} else {
		result.Seeded = append(result.Seeded, seeded.ID)
		span.SetAttributes(attribute.String(observability.AttrPipelineID, seeded.ID))
		h.emit(ctx, event.PipelineSeeded, map[string]any{
			"suite": suiteName, "case": c.Name, "pipeline": seeded.ID,
		})
	}

	// Run.
	var execution *Execution
	if result.Error == "" {
		runStart := time.Now()
		execution, err = h.runPipeline(ctx, c, seeded.ID, vars)
		result.Phases.Run = time.Since(runStart)
		if err != nil {
			fail("run", err)
		} else {
			result.ExecutionID = execution.ID
			result.Status = execution.Status
			span.SetAttributes(attribute.String(observability.AttrExecutionID, execution.ID))
		}
	}

	// Verify.
	if result.Error == "" {
		verifyStart := time.Now()
		extracted, err := h.verifyCase(ctx, c, execution)
		result.Phases.Verify = time.Since(verifyStart)
		result.Extracted = extracted
		if err != nil {
			fail("verify", err)
		}
	}

	result.Success = result.Error == ""

	// Cleanup runs on its own context so a cancelled case still deletes
	// what it seeded.
	cleanupStart := time.Now()
	h.cleanupCase(context.WithoutCancel(ctx), c, result)
	result.Phases.Cleanup = time.Since(cleanupStart)

	result.Duration = time.Since(start)
	if result.Success {
		span.SetStatus(codes.Ok, "case passed")
	}

	observability.GetGlobalMetrics().RecordCaseRun(ctx, suiteName, result.Success, result.Duration)
	h.emit(ctx, event.PipelineRunFinished, map[string]any{
		"suite":       suiteName,
		"case":        c.Name,
		"success":     result.Success,
		"duration_ms": result.Duration.Milliseconds(),
	})

	return result
}

// seedCase resolves the case's pipeline definition and creates it.
func (h *Harness) seedCase(ctx context.Context, c *config.CaseConfig, vars map[string]string) (*Pipeline, error) {
	definition, err := h.loadSeedDefinition(&c.Seed)
	if err != nil {
		return nil, err
	}

	resolved, _ := ResolveVariables(definition, vars).(map[string]any)
	if resolved == nil {
		return nil, fmt.Errorf("seed definition is not a mapping")
	}

	name, _ := resolved["name"].(string)
	if name == "" {
		name = c.Name
	}
	description, _ := resolved["description"].(string)

	pipeline := &Pipeline{
		Name:        name,
		Description: description,
		Definition:  resolved,
	}

	created, err := h.client.CreatePipeline(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("platform returned no pipeline id")
	}
	return created, nil
}

// runPipeline starts the execution and polls until it reaches a terminal
// state, bounded by the case timeout.
func (h *Harness) runPipeline(ctx context.Context, c *config.CaseConfig, pipelineID string, vars map[string]string) (*Execution, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	input, _ := ResolveVariables(c.Input, vars).(map[string]any)

	executionID, err := h.client.RunPipeline(runCtx, pipelineID, input)
	if err != nil {
		return nil, err
	}

	h.emit(ctx, event.PipelineRunStarted, map[string]any{
		"case": c.Name, "pipeline": pipelineID, "execution": executionID,
	})

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = pollInitialInterval
	policy.MaxInterval = pollMaxInterval
	policy.MaxElapsedTime = 0 // runCtx bounds the wait

	var execution *Execution
	poll := func() error {
		current, err := h.client.GetExecution(runCtx, executionID)
		if err != nil {
			// Transport-level trouble; keep polling until the timeout.
			return err
		}
		if !current.Status.IsTerminal() {
			return fmt.Errorf("execution %s still %s", executionID, current.Status)
		}
		execution = current
		return nil
	}

	if err := backoff.Retry(poll, backoff.WithContext(policy, runCtx)); err != nil {
		if runCtx.Err() != nil {
			return nil, fmt.Errorf("execution %s did not finish within %v", executionID, c.Timeout)
		}
		return nil, err
	}
	return execution, nil
}

// verifyCase checks the terminal status and the configured output checks,
// and gathers the case's extractions. The first failed expectation is the
// case's error; extractions are returned even then.
func (h *Harness) verifyCase(ctx context.Context, c *config.CaseConfig, execution *Execution) (map[string]any, error) {
	outputDoc, err := json.Marshal(execution.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execution output: %w", err)
	}

	extracted, extractErr := h.extractCase(ctx, c, execution, outputDoc)

	if string(execution.Status) != c.Expect.Status {
		detail := ""
		if execution.Error != "" {
			detail = fmt.Sprintf(" (%s)", execution.Error)
		}
		return extracted, fmt.Errorf("expected status %s, got %s%s", c.Expect.Status, execution.Status, detail)
	}

	for _, check := range c.Expect.Checks {
		if check == nil {
			continue
		}
		if err := h.runCheck(outputDoc, check); err != nil {
			return extracted, err
		}
	}

	return extracted, extractErr
}

func (h *Harness) runCheck(outputDoc []byte, check *config.CheckConfig) error {
	value, ok := Extract(outputDoc, check.Path)
	if !ok {
		return fmt.Errorf("check %s: path not found in output", check.Path)
	}

	if check.Pattern != "" {
		matched, err := MatchPattern(value, check.Pattern)
		if err != nil {
			return fmt.Errorf("check %s: %w", check.Path, err)
		}
		if !matched {
			return fmt.Errorf("check %s: value %q does not match %q", check.Path, Stringify(value), check.Pattern)
		}
		return nil
	}

	if !Equals(value, check.Equals) {
		return fmt.Errorf("check %s: expected %v, got %v", check.Path, check.Equals, value)
	}
	return nil
}

// extractCase resolves the case's named extractions: paths against the
// output document, regexes against the execution logs (fetched once).
func (h *Harness) extractCase(ctx context.Context, c *config.CaseConfig, execution *Execution, outputDoc []byte) (map[string]any, error) {
	if len(c.Extract) == 0 {
		return nil, nil
	}

	extracted := make(map[string]any, len(c.Extract))
	var logs string
	var logsFetched bool
	var firstErr error

	for name, ex := range c.Extract {
		if ex == nil {
			continue
		}

		if ex.Path != "" {
			if value, ok := Extract(outputDoc, ex.Path); ok {
				extracted[name] = value
			}
			continue
		}

		if !logsFetched {
			logsFetched = true
			var err error
			logs, err = h.client.GetExecutionLogs(ctx, execution.ID)
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("extract %s: failed to fetch logs: %w", name, err)
				continue
			}
		}

		value, ok, err := ExtractRegex(logs, ex.Regex)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("extract %s: %w", name, err)
			continue
		}
		if ok {
			extracted[name] = value
		}
	}

	if len(extracted) == 0 {
		extracted = nil
	}
	return extracted, firstErr
}

// cleanupCase deletes the case's seeded pipelines per its cleanup policy.
// Deletions fan out concurrently and failures only warn.
func (h *Harness) cleanupCase(ctx context.Context, c *config.CaseConfig, result *CaseResult) {
	if len(result.Seeded) == 0 {
		return
	}

	switch c.Cleanup {
	case config.CleanupNever:
		return
	case config.CleanupOnSuccess:
		if !result.Success {
			return
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pipelineID := range result.Seeded {
		g.Go(func() error {
			if err := h.client.DeletePipeline(gctx, pipelineID); err != nil {
				slog.Warn("Failed to delete seeded pipeline",
					"case", c.Name, "pipeline", pipelineID, "error", err)
			}
			return nil
		})
	}
	g.Wait()

	h.emit(ctx, event.PipelineCleanup, map[string]any{
		"case": c.Name, "pipelines": result.Seeded,
	})
}

// SeedSuite runs only the seed phase of every case and returns the created
// pipelines keyed by case name.
func (h *Harness) SeedSuite(ctx context.Context, suite *config.SuiteConfig) (map[string]*Pipeline, error) {
	seeded := make(map[string]*Pipeline, len(suite.Cases))
	for _, c := range suite.Cases {
		vars := MergeVariables(suite.Variables, c.Seed.Variables)
		pipeline, err := h.seedCase(ctx, c, vars)
		if err != nil {
			return seeded, fmt.Errorf("case %q: %w", c.Name, err)
		}
		seeded[c.Name] = pipeline
		slog.Info("Seeded pipeline", "case", c.Name, "pipeline", pipeline.ID, "name", pipeline.Name)
	}
	return seeded, nil
}

// CleanupSuite deletes every platform pipeline whose name belongs to one of
// the suite's cases. Used to mop up after seed-only runs and crashed cases.
func (h *Harness) CleanupSuite(ctx context.Context, suite *config.SuiteConfig) (int, error) {
	names := make(map[string]bool, len(suite.Cases))
	for _, c := range suite.Cases {
		names[c.Name] = true
		if definition, err := h.loadSeedDefinition(&c.Seed); err == nil {
			if name, _ := definition["name"].(string); name != "" {
				vars := MergeVariables(suite.Variables, c.Seed.Variables)
				names[ExpandVariableString(name, vars)] = true
			}
		}
	}

	pipelines, err := h.client.ListPipelines(ctx)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	deleted := 0
	for _, pipeline := range pipelines {
		if !names[pipeline.Name] {
			continue
		}
		deleted++
		g.Go(func() error {
			if err := h.client.DeletePipeline(gctx, pipeline.ID); err != nil {
				slog.Warn("Failed to delete pipeline", "pipeline", pipeline.ID, "error", err)
			}
			return nil
		})
	}
	g.Wait()

	h.emit(ctx, event.PipelineCleanup, map[string]any{"deleted": deleted})
	return deleted, nil
}

// loadSeedDefinition returns the case's pipeline definition: the inline
// mapping, or the parsed YAML/JSON file.
func (h *Harness) loadSeedDefinition(seed *config.SeedConfig) (map[string]any, error) {
	if len(seed.Pipeline) > 0 {
		return seed.Pipeline, nil
	}

	path := seed.File
	if !filepath.IsAbs(path) && h.baseDir != "" {
		path = filepath.Join(h.baseDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var definition map[string]any
	if err := yaml.Unmarshal(data, &definition); err != nil {
		if jsonErr := json.Unmarshal(data, &definition); jsonErr != nil {
			return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
		}
	}
	return definition, nil
}

func (h *Harness) emit(ctx context.Context, eventType string, payload map[string]any) {
	if h.emitter != nil {
		h.emitter.Emit(ctx, eventType, payload)
	}
}
