// Package scheduler implements the L6 Scheduler/Runloop of spec.md §4.6: it
// drives every construct's four lifecycle phases in topological, per-signer
// sequential order, in either a non-supervised (synchronous) or supervised
// (interactive, park-and-resume) mode, and reports progress over the L7
// Event Bus.
package scheduler

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/txtx-labs/runbook-core/internal/bus"
	"github.com/txtx-labs/runbook-core/internal/capability"
	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/eval"
	"github.com/txtx-labs/runbook-core/internal/execctx"
	"github.com/txtx-labs/runbook-core/internal/graph"
	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/syntax"
	"github.com/txtx-labs/runbook-core/internal/value"
	"github.com/txtx-labs/runbook-core/internal/workspace"
)

// Scheduler wires the graph, workspace, capability registry, execution
// context, and event bus together to run a single flow.
type Scheduler struct {
	Graph              *graph.Graph
	Workspace          *workspace.Workspace
	Registry           *capability.Registry
	ExecCtx            *execctx.Context
	Bus                *bus.Bus
	Functions          eval.FunctionCaller
	MaxBackgroundTasks int64

	// Packages maps each construct id to the workspace.Package it was
	// indexed under, since workspace.Construct does not retain it.
	Packages map[identifier.ID]*workspace.Package
}

// Result is the outcome of a full scheduler run: the set of construct
// results published, and any fatal diagnostic that stopped the run early.
type Result struct {
	Completed []identifier.ID
	Failed    map[identifier.ID]*diagnostic.Diagnostic
	Cancelled bool
}

func isSignerConstruct(c *workspace.Construct) bool {
	return c != nil && c.Block != nil && c.Block.Type == "signer"
}

// registerSigners installs an empty initial state for every indexed signer
// construct that is not already registered, so runWithSigner's first Pop
// never fails with "unregistered signer" (§3 signer state invariant). Run
// once at the start of each drive; Register itself is a no-op on a signer
// already known, so calling this more than once (e.g. across flows sharing
// a workspace) is harmless.
func (s *Scheduler) registerSigners() {
	for _, id := range s.Graph.Ids() {
		construct, ok := s.Workspace.Construct(id)
		if !ok || !isSignerConstruct(construct) {
			continue
		}
		s.ExecCtx.Signers.Register(id, value.EmptyObject())
	}
}

func (s *Scheduler) env(pkg *workspace.Package) *eval.Env {
	return &eval.Env{Workspace: s.Workspace, Package: pkg, Functions: s.Functions, Results: s.ExecCtx}
}

func (s *Scheduler) descriptorFor(construct *workspace.Construct) (capability.Descriptor, bool) {
	if construct == nil || construct.Block == nil {
		return capability.Descriptor{}, false
	}
	matcher := construct.Block.Matcher()
	if isSignerConstruct(construct) {
		return s.Registry.Signer(matcher)
	}
	return s.Registry.Action(matcher)
}

// evaluateInputs evaluates every declared attribute of a construct's block
// into a single object Value, short-circuiting on the first failure or
// not-yet-available dependency.
func (s *Scheduler) evaluateInputs(construct *workspace.Construct, pkg *workspace.Package) eval.Outcome {
	block := construct.Block
	if block == nil {
		return eval.Outcome{Kind: eval.OutcomeSuccess, Value: value.EmptyObject()}
	}
	fields := map[string]value.Value{}
	keys := make([]string, 0, len(block.AttributeOrder))
	env := s.env(pkg)
	for _, name := range block.AttributeOrder {
		expr, _ := block.Attribute(name)
		out := eval.Evaluate(expr, env)
		if out.Kind != eval.OutcomeSuccess {
			return out
		}
		fields[name] = out.Value
		keys = append(keys, name)
	}
	return eval.Outcome{Kind: eval.OutcomeSuccess, Value: value.Object(keys, fields)}
}

func preConditionExpr(block *syntax.Block) syntax.Expr {
	if block == nil {
		return nil
	}
	expr, _ := block.Attribute("pre_condition")
	return expr
}

func postConditionExpr(block *syntax.Block) syntax.Expr {
	if block == nil {
		return nil
	}
	expr, _ := block.Attribute("post_condition")
	return expr
}

// RunNonSupervised drives every indexed construct synchronously in
// topological order, failing the whole run on the first fatal diagnostic
// and never waiting on human interaction (§4.6 mode 1).
func (s *Scheduler) RunNonSupervised(ctx context.Context) (*Result, error) {
	order, cycle := s.Graph.StableTopologicalSort()
	if cycle != nil {
		return nil, fmt.Errorf("%s", cycle.Error())
	}
	s.registerSigners()

	result := &Result{Failed: map[identifier.ID]*diagnostic.Diagnostic{}}
	for _, id := range order {
		if ctx.Err() != nil {
			result.Cancelled = true
			if s.Bus != nil {
				s.Bus.Publish(bus.BlockEvent{Kind: bus.EventExit})
			}
			return result, nil
		}
		diag := s.runConstructSync(ctx, id)
		if diag != nil {
			result.Failed[id] = diag
			if s.Bus != nil {
				s.Bus.PublishError(bus.Block{Title: id.String(), Groups: nil})
			}
			return result, nil
		}
		result.Completed = append(result.Completed, id)
	}
	if s.Bus != nil {
		s.Bus.PublishRunbookCompleted()
	}
	return result, nil
}

// runConstructSync drives a single construct's four phases without ever
// suspending for interaction; a phase that reports OutcomeNeedsAction is
// treated as a fatal diagnostic since there is no supervisor to answer it.
func (s *Scheduler) runConstructSync(ctx context.Context, id identifier.ID) *diagnostic.Diagnostic {
	construct, ok := s.Workspace.Construct(id)
	if !ok {
		return diagnostic.New("scheduler: unknown construct %s", id.String())
	}
	if construct.Block == nil || (construct.Block.Type != "action" && construct.Block.Type != "signer") {
		// Non-executable constructs (variable, output, module, ...) are
		// already fully represented by their evaluated value.
		return s.publishPassthroughResult(id, construct)
	}

	pkg := s.Packages[id]
	descriptor, ok := s.descriptorFor(construct)
	if !ok {
		return diagnostic.New("scheduler: no capability registered for %q", construct.Block.Matcher())
	}

	inputsOutcome := s.evaluateInputs(construct, pkg)
	if inputsOutcome.Kind != eval.OutcomeSuccess {
		return outcomeDiagnostic(inputsOutcome)
	}
	inputs := inputsOutcome.Value
	s.ExecCtx.SetInputsEvaluated(id, inputs)

	ok2, diag := execctx.EvaluateCondition(preConditionExpr(construct.Block), s.env(pkg))
	if diag != nil {
		return diag
	}
	if !ok2 {
		s.ExecCtx.SetResult(id, value.Null(), nil)
		return nil
	}

	pc := capability.PhaseContext{ConstructID: id, Inputs: inputs}

	if descriptor.CheckInstantiability != nil {
		if diag := descriptor.CheckInstantiability(pc); diag != nil {
			return diag
		}
	}

	fingerprint := execctx.Fingerprint(inputs, descriptor.SensitiveInputNames())
	if cached, skip := s.ExecCtx.ShouldSkip(id, fingerprint); skip {
		s.ExecCtx.SetResult(id, cached, fingerprint)
		return nil
	}

	if descriptor.CheckExecutability != nil {
		check, diag := descriptor.CheckExecutability(ctx, pc)
		if diag != nil {
			return diag
		}
		if !check.Ready {
			return diagnostic.New("scheduler: construct %s requires interaction but is running non-supervised", id.String())
		}
	}

	var run capability.RunResult
	var diag2 *diagnostic.Diagnostic
	s.ExecCtx.SetExecuting(id)
	if descriptor.IsComposite() {
		run, diag2 = s.runCompositeParts(ctx, pc, descriptor)
	} else {
		run, diag2 = s.runWithSigner(ctx, construct, id, pc, descriptor)
	}
	if diag2 != nil {
		return diag2
	}
	if run.Diagnostic != nil {
		return run.Diagnostic
	}

	if !descriptor.IsComposite() && descriptor.BuildBackgroundTask != nil {
		s.ExecCtx.SetBackgroundTaskRunning(id)
		bg := descriptor.BuildBackgroundTask(ctx, pc)
		if bg.Diagnostic != nil {
			return bg.Diagnostic
		}
		if !bg.Result.IsNull() {
			run.Result = bg.Result
		}
	}

	ok3, diag := execctx.EvaluateCondition(postConditionExpr(construct.Block), s.envWithResult(pkg, id, run.Result))
	if diag != nil {
		return diag
	}
	if !ok3 {
		return diagnostic.New("scheduler: post_condition failed for construct %s", id.String())
	}

	s.ExecCtx.SetResult(id, run.Result, fingerprint)
	return nil
}

// runCompositeParts runs a composite descriptor's atomic Parts in
// declaration order for their instantiability/run phases, then drains every
// part's background task concurrently on the bounded pool, merging each
// part's result under its own name into the composite's published result
// (§4.5 composite commands).
func (s *Scheduler) runCompositeParts(ctx context.Context, pc capability.PhaseContext, descriptor capability.Descriptor) (capability.RunResult, *diagnostic.Diagnostic) {
	results := make([]value.Value, len(descriptor.Parts))
	var backgroundIdx []int
	for i, part := range descriptor.Parts {
		if part.CheckInstantiability != nil {
			if diag := part.CheckInstantiability(pc); diag != nil {
				return capability.RunResult{}, diag
			}
		}
		var run capability.RunResult
		if part.RunExecution != nil {
			run = part.RunExecution(ctx, pc)
		}
		if run.Diagnostic != nil {
			return capability.RunResult{}, run.Diagnostic
		}
		results[i] = run.Result
		if part.BuildBackgroundTask != nil {
			backgroundIdx = append(backgroundIdx, i)
		}
	}

	if len(backgroundIdx) > 0 {
		tasks := make([]func(context.Context) error, len(backgroundIdx))
		for n, i := range backgroundIdx {
			i := i
			part := descriptor.Parts[i]
			tasks[n] = func(taskCtx context.Context) error {
				bg := part.BuildBackgroundTask(taskCtx, pc)
				if bg.Diagnostic != nil {
					return fmt.Errorf("%s", bg.Diagnostic.Error())
				}
				if !bg.Result.IsNull() {
					results[i] = bg.Result
				}
				return nil
			}
		}
		if err := s.runBackgroundTasks(ctx, tasks); err != nil {
			return capability.RunResult{}, diagnostic.New("scheduler: composite background task failed: %s", err.Error())
		}
	}

	keys := make([]string, len(descriptor.Parts))
	fields := map[string]value.Value{}
	for i, part := range descriptor.Parts {
		keys[i] = part.Name
		fields[part.Name] = results[i]
	}
	return capability.RunResult{Result: value.Object(keys, fields)}, nil
}

// runWithSigner checks a signer construct's state out of the SignerStore for
// the duration of RunExecution and pushes back whatever the phase left in
// the result's "signer_state" field, enforcing that at most one operation
// touches a given signer at a time (§4.4 signer threading). Non-signer
// constructs run unchanged.
func (s *Scheduler) runWithSigner(ctx context.Context, construct *workspace.Construct, id identifier.ID, pc capability.PhaseContext, descriptor capability.Descriptor) (capability.RunResult, *diagnostic.Diagnostic) {
	if !isSignerConstruct(construct) {
		if descriptor.RunExecution == nil {
			return capability.RunResult{}, nil
		}
		return descriptor.RunExecution(ctx, pc), nil
	}

	state, err := s.ExecCtx.Signers.Pop(id)
	if err != nil {
		return capability.RunResult{}, diagnostic.New("scheduler: %s", err.Error())
	}
	pc.AddonDefaults = map[string]value.Value{"signer_state": state}

	var run capability.RunResult
	if descriptor.RunExecution != nil {
		run = descriptor.RunExecution(ctx, pc)
	}

	next := state
	if nextState, ok := run.Result.ObjectField("signer_state"); ok {
		next = nextState
	}
	if pushErr := s.ExecCtx.Signers.Push(id, next); pushErr != nil {
		return run, diagnostic.New("scheduler: %s", pushErr.Error())
	}
	return run, nil
}

// envWithResult builds an Env whose ResultCache already reports id's result,
// so a post_condition predicate can reference the construct's own output.
func (s *Scheduler) envWithResult(pkg *workspace.Package, id identifier.ID, result value.Value) *eval.Env {
	return &eval.Env{Workspace: s.Workspace, Package: pkg, Functions: s.Functions, Results: overlayCache{base: s.ExecCtx, id: id, value: result}}
}

type overlayCache struct {
	base  eval.ResultCache
	id    identifier.ID
	value value.Value
}

func (o overlayCache) Result(id identifier.ID) (value.Value, bool) {
	if id == o.id {
		return o.value, true
	}
	return o.base.Result(id)
}

// publishPassthroughResult evaluates a non-executable construct's block (a
// variable/output/module literal) directly into its published result.
func (s *Scheduler) publishPassthroughResult(id identifier.ID, construct *workspace.Construct) *diagnostic.Diagnostic {
	if construct.Block == nil {
		s.ExecCtx.SetResult(id, value.Null(), nil)
		return nil
	}
	pkg := s.Packages[id]
	expr, ok := construct.Block.Attribute("value")
	if !ok {
		s.ExecCtx.SetResult(id, value.Null(), nil)
		return nil
	}
	out := eval.Evaluate(expr, s.env(pkg))
	if out.Kind != eval.OutcomeSuccess {
		return outcomeDiagnostic(out)
	}
	s.ExecCtx.SetResult(id, out.Value, nil)
	return nil
}

func outcomeDiagnostic(out eval.Outcome) *diagnostic.Diagnostic {
	if out.Diagnostic != nil {
		return out.Diagnostic
	}
	if out.Pending != nil {
		return diagnostic.New("unresolved dependency on %s: %s", out.Pending.ConstructID.String(), out.Pending.Reason)
	}
	return diagnostic.New("scheduler: evaluation did not succeed")
}

// RunSupervised drives every indexed construct in topological order like
// RunNonSupervised, except that a construct whose CheckExecutability phase
// reports it is not yet Ready is parked: the scheduler emits an Action block
// over the bus describing the outstanding ActionRequests and blocks on the
// matching ActionItemResponses before re-driving that construct's remaining
// phases (§4.6 mode 2).
func (s *Scheduler) RunSupervised(ctx context.Context) (*Result, error) {
	if s.Bus == nil {
		return nil, fmt.Errorf("scheduler: RunSupervised requires a non-nil Bus")
	}
	order, cycle := s.Graph.StableTopologicalSort()
	if cycle != nil {
		return nil, fmt.Errorf("%s", cycle.Error())
	}
	s.registerSigners()

	result := &Result{Failed: map[identifier.ID]*diagnostic.Diagnostic{}}
	for _, id := range order {
		if ctx.Err() != nil {
			result.Cancelled = true
			s.Bus.PublishExit()
			return result, nil
		}
		diag := s.runConstructSupervised(ctx, id)
		if diag != nil {
			result.Failed[id] = diag
			s.Bus.PublishError(bus.Block{Title: id.String()})
			return result, nil
		}
		result.Completed = append(result.Completed, id)
	}
	s.Bus.PublishRunbookCompleted()
	return result, nil
}

// runConstructSupervised is runConstructSync's interactive twin: wherever
// the non-supervised path would fail because a phase needs interaction, this
// path parks and waits on the bus instead.
func (s *Scheduler) runConstructSupervised(ctx context.Context, id identifier.ID) *diagnostic.Diagnostic {
	construct, ok := s.Workspace.Construct(id)
	if !ok {
		return diagnostic.New("scheduler: unknown construct %s", id.String())
	}
	if construct.Block == nil || (construct.Block.Type != "action" && construct.Block.Type != "signer") {
		return s.publishPassthroughResult(id, construct)
	}

	pkg := s.Packages[id]
	descriptor, ok := s.descriptorFor(construct)
	if !ok {
		return diagnostic.New("scheduler: no capability registered for %q", construct.Block.Matcher())
	}

	inputsOutcome := s.evaluateInputs(construct, pkg)
	if inputsOutcome.Kind != eval.OutcomeSuccess {
		return outcomeDiagnostic(inputsOutcome)
	}
	inputs := inputsOutcome.Value
	s.ExecCtx.SetInputsEvaluated(id, inputs)

	ok2, diag := execctx.EvaluateCondition(preConditionExpr(construct.Block), s.env(pkg))
	if diag != nil {
		return diag
	}
	if !ok2 {
		s.ExecCtx.SetResult(id, value.Null(), nil)
		return nil
	}

	pc := capability.PhaseContext{ConstructID: id, Inputs: inputs}

	if descriptor.CheckInstantiability != nil {
		if diag := descriptor.CheckInstantiability(pc); diag != nil {
			return diag
		}
	}

	fingerprint := execctx.Fingerprint(inputs, descriptor.SensitiveInputNames())
	if cached, skip := s.ExecCtx.ShouldSkip(id, fingerprint); skip {
		s.ExecCtx.SetResult(id, cached, fingerprint)
		return nil
	}

	if descriptor.CheckExecutability != nil {
		for {
			if isSignerConstruct(construct) {
				if state, ok := s.ExecCtx.Signers.Peek(id); ok {
					pc.AddonDefaults = map[string]value.Value{"signer_state": state}
				}
			}
			check, diag := descriptor.CheckExecutability(ctx, pc)
			if diag != nil {
				return diag
			}
			if check.Ready {
				break
			}
			if err := s.awaitActionRequests(ctx, id, construct, &pc, check.Requests); err != nil {
				return diagnostic.New("scheduler: %s", err.Error())
			}
		}
	}

	var run capability.RunResult
	var diag2 *diagnostic.Diagnostic
	s.ExecCtx.SetExecuting(id)
	if descriptor.IsComposite() {
		run, diag2 = s.runCompositeParts(ctx, pc, descriptor)
	} else {
		run, diag2 = s.runWithSigner(ctx, construct, id, pc, descriptor)
	}
	if diag2 != nil {
		return diag2
	}
	if run.Diagnostic != nil {
		return run.Diagnostic
	}

	if !descriptor.IsComposite() && descriptor.BuildBackgroundTask != nil {
		s.ExecCtx.SetBackgroundTaskRunning(id)
		bg := descriptor.BuildBackgroundTask(ctx, pc)
		if bg.Diagnostic != nil {
			return bg.Diagnostic
		}
		if !bg.Result.IsNull() {
			run.Result = bg.Result
		}
	}

	ok3, diag := execctx.EvaluateCondition(postConditionExpr(construct.Block), s.envWithResult(pkg, id, run.Result))
	if diag != nil {
		return diag
	}
	if !ok3 {
		return diagnostic.New("scheduler: post_condition failed for construct %s", id.String())
	}

	s.ExecCtx.SetResult(id, run.Result, fingerprint)
	return nil
}

// awaitActionRequests publishes a single Action block carrying one item per
// outstanding capability.ActionRequest and blocks until every one of them has a matching
// ActionItemResponse, or ctx is cancelled. Each response is merged into the
// signer state or the construct's evaluated inputs (via mergeActionResponse)
// as it arrives, so the caller's next CheckExecutability/CheckSignability
// call — driven from the loop in runConstructSupervised — re-evaluates
// readiness against the supervisor's actual answer instead of assuming a
// single round trip always suffices (§4.6).
func (s *Scheduler) awaitActionRequests(ctx context.Context, id identifier.ID, construct *workspace.Construct, pc *capability.PhaseContext, requests []capability.ActionRequest) error {
	s.ExecCtx.SetAwaitingInteraction(id)

	items := make([]bus.ActionItemRequest, len(requests))
	kindByItem := make(map[bus.ActionItemID]string, len(requests))
	pending := map[bus.ActionItemID]bool{}
	for i, req := range requests {
		itemID := bus.NewActionItemID()
		cid := id
		items[i] = bus.ActionItemRequest{
			ID:          itemID,
			ConstructID: &cid,
			Title:       req.Title,
			Description: req.Description,
			Status:      bus.StatusTodo(),
			Payload:     bus.ActionItemPayload{Kind: req.Kind, Data: req.Payload},
		}
		kindByItem[itemID] = req.Kind
		pending[itemID] = true
	}
	s.Bus.PublishRequest(bus.EventAction, bus.Block{
		ID:     bus.NewBlockID(),
		Title:  "action required",
		Groups: []bus.Group{{Title: id.String(), SubGroups: []bus.SubGroup{{Items: items}}}},
	})

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case resp := <-s.Bus.ResponseChannel():
			if !pending[resp.ID] {
				continue
			}
			delete(pending, resp.ID)
			s.mergeActionResponse(id, construct, pc, kindByItem[resp.ID], resp.Value)
		}
	}
	return nil
}

// mergeActionResponse folds one resolved ActionItemResponse's value into
// wherever the next phase call reads it from: a signer construct's state
// in the SignerStore (outside the Pop/Push checkout, since the signer has
// not yet been checked out for sign/activate), or a plain construct's
// in-flight evaluated inputs, keyed by the originating request's Kind
// (§4.6: "its value is merged into the signer state or input evaluation
// cache").
func (s *Scheduler) mergeActionResponse(id identifier.ID, construct *workspace.Construct, pc *capability.PhaseContext, kind string, respValue value.Value) {
	if kind == "" {
		kind = "response"
	}
	if isSignerConstruct(construct) {
		_ = s.ExecCtx.Signers.Merge(id, kind, respValue)
		return
	}
	pc.Inputs = pc.Inputs.WithField(kind, respValue)
	s.ExecCtx.SetInputsEvaluated(id, pc.Inputs)
}

// runBackgroundTasks drains a set of background task thunks on a bounded
// pool, cancelled as a unit by ctx (§4.6 "separate task pool" / §5).
func (s *Scheduler) runBackgroundTasks(ctx context.Context, tasks []func(context.Context) error) error {
	limit := s.MaxBackgroundTasks
	if limit <= 0 {
		limit = 4
	}
	sem := semaphore.NewWeighted(limit)
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			return task(gctx)
		})
	}
	return g.Wait()
}
