// Command runbookctl is a minimal smoke-test binary: it wires every core
// layer together against an in-memory addon and a tiny fixture runbook to
// demonstrate the core is runnable end to end. It is not a real CLI surface
// (no flag parsing library, no subcommand framework, §6).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/txtx-labs/runbook-core/internal/capability"
	"github.com/txtx-labs/runbook-core/internal/execctx"
	"github.com/txtx-labs/runbook-core/internal/graph"
	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/runtimeconfig"
	"github.com/txtx-labs/runbook-core/internal/syntax"
	"github.com/txtx-labs/runbook-core/internal/telemetry"
	"github.com/txtx-labs/runbook-core/internal/value"
	"github.com/txtx-labs/runbook-core/internal/workspace"

	"github.com/txtx-labs/runbook-core/internal/scheduler"
)

// echoAddon is a trivial in-memory addon that makes its single action's
// inputs its own result, solely to prove the scheduler can drive a
// registered capability end to end.
type echoAddon struct{}

func (echoAddon) Namespace() string { return "demo" }

func (echoAddon) Actions() []capability.Descriptor {
	return []capability.Descriptor{{
		Name:    "echo",
		Matcher: "demo::echo",
		Inputs:  []capability.InputDef{{Name: "message", Type: value.Primitive(value.KindString)}},
		RunExecution: func(_ context.Context, pc capability.PhaseContext) capability.RunResult {
			return capability.RunResult{Result: pc.Inputs}
		},
	}}
}

func (echoAddon) Signers() []capability.Descriptor { return nil }
func (echoAddon) Functions() []capability.Function  { return nil }

func main() {
	logger, err := telemetry.New(telemetry.Options{HumanReadable: true, Component: "runbookctl"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg := runtimeconfig.Default()
	logger.Info("starting smoke run", "max_background_tasks", cfg.MaxBackgroundTasks)

	runbookID := identifier.NewRunbookID("smoke")
	ws := workspace.New(runbookID)
	g := graph.New()
	pkg := ws.IndexPackage(identifier.NewPackageID(runbookID, ".", "main"))

	varBlock := &syntax.Block{
		Type:           "variable",
		Labels:         []string{"greeting"},
		Attributes:     map[string]syntax.Expr{"value": syntax.LiteralExpr{Value: value.String("hello from the runbook execution core")}},
		AttributeOrder: []string{"value"},
	}
	varCID := ws.IndexConstruct(pkg, identifier.KindVariable, "main.tx", "greeting", varBlock, g)

	actionBlock := &syntax.Block{
		Type:           "action",
		Labels:         []string{"say", "demo::echo"},
		Attributes:     map[string]syntax.Expr{"message": syntax.TraversalExpr{Root: "var", Name: "greeting"}},
		AttributeOrder: []string{"message"},
	}
	actionCID := ws.IndexConstruct(pkg, identifier.KindAction, "main.tx", "say", actionBlock, g)
	g.AddEdge(actionCID.ID, varCID.ID)

	registry := capability.NewRegistry()
	if err := registry.Register(echoAddon{}, g); err != nil {
		logger.Error("addon registration failed", "error", err)
		os.Exit(1)
	}

	sched := &scheduler.Scheduler{
		Graph:              g,
		Workspace:          ws,
		Registry:           registry,
		ExecCtx:            execctx.New(),
		MaxBackgroundTasks: cfg.MaxBackgroundTasks,
		Packages: map[identifier.ID]*workspace.Package{
			varCID.ID:    pkg,
			actionCID.ID: pkg,
		},
	}

	result, err := sched.RunNonSupervised(context.Background())
	if err != nil {
		logger.Error("scheduler run failed", "error", err)
		os.Exit(1)
	}
	if len(result.Failed) > 0 {
		for id, diag := range result.Failed {
			logger.Error("construct failed", "construct_id", id.String(), "diagnostic", diag.Error())
		}
		os.Exit(1)
	}

	out, _ := sched.ExecCtx.Result(actionCID.ID)
	message, _ := out.ObjectField("message")
	rendered, _ := message.AsString()
	logger.Info("smoke run completed", "message", rendered)
}
