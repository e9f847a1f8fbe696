// Package orchestrator implements the end-to-end pipeline (C8):
// parse → plan/rebuild → persist scenario → execute cells → aggregate
// → persist artifact → shut down the pool → emit a summary (§4.8).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/testgpt-run/testgpt/internal/aggregator"
	"github.com/testgpt-run/testgpt/internal/agent"
	"github.com/testgpt-run/testgpt/internal/catalog"
	"github.com/testgpt-run/testgpt/internal/domain"
	"github.com/testgpt-run/testgpt/internal/executor"
	"github.com/testgpt-run/testgpt/internal/parser"
	"github.com/testgpt-run/testgpt/internal/planbuilder"
	"github.com/testgpt-run/testgpt/internal/stability"
	"github.com/testgpt-run/testgpt/internal/store"
)

// Pool is the subset of internal/pool.Pool the orchestrator needs,
// expressed over executor.ToolHandle so it is both what executor
// expects and trivially fakeable in tests. The cmd package wraps the
// concrete *pool.Pool (which returns *browsertool.Handle) to satisfy
// this interface when wiring the real binary.
type Pool interface {
	Acquire(ctx context.Context, vp domain.ViewportProfile, br domain.BrowserProfile, np domain.NetworkProfile) (executor.ToolHandle, error)
	Release(executor.ToolHandle)
	Evict(vp domain.ViewportProfile, br domain.BrowserProfile)
	Shutdown()
}

// Orchestrator runs the whole pipeline for one request. Its
// maxConcurrency field bounds optional concurrent cell dispatch.
// Concurrency is off by default (§9's Open Question resolution: cells
// run sequentially unless max_concurrency > 1), and even then two
// cells sharing a (viewport, browser) pair never run concurrently
// against the same subprocess — runCells holds a per-pair lock for
// the whole of each cell, so concurrency only parallelizes across
// distinct pairs.
type Orchestrator struct {
	log            zerolog.Logger
	cat            *catalog.Catalog
	parser         *parser.Parser
	builder        *planbuilder.Builder
	store          *store.Store
	pool           Pool
	exec           *executor.Executor
	stability      *stability.Tracker
	maxConcurrency int
}

// New constructs an Orchestrator from its fully-wired dependencies.
// toolTimeout bounds individual tool calls made through the pool's
// handles; model is the already-constructed Model Agent (genai-backed
// in production, a fake in tests). tracker may be nil, in which case
// stability recording (§4.12) is skipped entirely.
func New(log zerolog.Logger, cat *catalog.Catalog, p *parser.Parser, b *planbuilder.Builder, st *store.Store, pool Pool, model agent.Agent, toolTimeout time.Duration, maxConcurrency int, tracker *stability.Tracker) *Orchestrator {
	return &Orchestrator{
		log:            log,
		cat:            cat,
		parser:         p,
		builder:        b,
		store:          st,
		pool:           pool,
		exec:           executor.New(log, pool, model, toolTimeout),
		stability:      tracker,
		maxConcurrency: maxConcurrency,
	}
}

// Run executes §4.8's pipeline for one natural-language request (or a
// re-run reference) and returns the persisted RunArtifact.
func (o *Orchestrator) Run(ctx context.Context, message string) (domain.RunArtifact, error) {
	defer o.pool.Shutdown()

	req, err := o.parser.Parse(message)
	if err != nil {
		return domain.RunArtifact{}, fmt.Errorf("parsing request: %w", err)
	}

	var plan domain.TestPlan
	if req.IsRerun {
		scenario, err := o.resolveRerun(req.RerunReference)
		if err != nil {
			return domain.RunArtifact{}, fmt.Errorf("resolving re-run reference %q: %w", req.RerunReference, err)
		}
		plan, err = o.builder.RebuildFromScenario(scenario)
		if err != nil {
			return domain.RunArtifact{}, fmt.Errorf("rebuilding plan from scenario: %w", err)
		}
	} else {
		plan, err = o.builder.Build(req)
		if err != nil {
			return domain.RunArtifact{}, fmt.Errorf("building plan: %w", err)
		}
	}

	scenarioDef := planbuilder.ToScenarioDefinition(plan)
	scenarioDef.LastRunAt = time.Now()
	if err := o.store.SaveScenario(scenarioDef); err != nil {
		return domain.RunArtifact{}, fmt.Errorf("saving scenario: %w", err)
	}

	started := time.Now()
	results := o.runCells(ctx, plan.Cells, message)
	completed := time.Now()

	runID := uuid.NewString()
	artifact := aggregator.Aggregate(runID, plan.ScenarioID, plan.ScenarioName, started, completed, plan.Cells, results)

	if o.stability != nil {
		outcome := domain.StabilityFail
		if artifact.OverallStatus == domain.OverallPass {
			outcome = domain.StabilityPass
		}
		metrics := o.stability.Record(plan.ScenarioID, outcome, runID)
		if metrics.Quarantined || metrics.FlakeRate >= o.stability.FlakeThreshold() {
			artifact.Summary += fmt.Sprintf("\nStability: flake_rate=%.0f%% quarantined=%v (%d runs in window)\n",
				metrics.FlakeRate*100, metrics.Quarantined, metrics.PassCount+metrics.FailCount)
		}
	}

	if err := o.store.SaveRunArtifact(artifact); err != nil {
		return domain.RunArtifact{}, fmt.Errorf("saving run artifact %s: %w", runID, err)
	}

	return artifact, nil
}

func (o *Orchestrator) resolveRerun(reference string) (domain.ScenarioDefinition, error) {
	if reference == "" || parser.IsSpecialRerunRef(reference) {
		return o.store.ResolveLast()
	}
	return o.store.FindScenario(reference)
}

// runCells dispatches every MatrixCell, sequentially by default. When
// max_concurrency > 1, up to that many cells run concurrently; a
// per-pair lock held around each Execute still serializes any two
// cells that share a (viewport, browser) subprocess, so raising
// concurrency only parallelizes across distinct pairs (§9).
func (o *Orchestrator) runCells(ctx context.Context, cells []domain.MatrixCell, userMessage string) []domain.CellResult {
	results := make([]domain.CellResult, len(cells))

	concurrency := o.maxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency == 1 {
		for i, cell := range cells {
			results[i] = o.exec.Execute(ctx, cell, userMessage)
		}
		return results
	}

	pairLocks := make(map[string]*sync.Mutex)
	work := make(chan int, len(cells))
	for i, cell := range cells {
		if key := cell.Viewport.Name + "|" + cell.Browser.Name; pairLocks[key] == nil {
			pairLocks[key] = &sync.Mutex{}
		}
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				mu := pairLocks[cells[idx].Viewport.Name+"|"+cells[idx].Browser.Name]
				mu.Lock()
				results[idx] = o.exec.Execute(ctx, cells[idx], userMessage)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return results
}
