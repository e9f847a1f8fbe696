// Package pool implements the Subprocess Pool Manager (C5): the
// launch/connect/cache/teardown lifecycle of per-(viewport, browser)
// browser-automation subprocesses (§4.5).
package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"

	"github.com/testgpt-run/testgpt/internal/browsertool"
	"github.com/testgpt-run/testgpt/internal/domain"
	"github.com/testgpt-run/testgpt/internal/executor"
)

// ErrSubprocessLaunchTimeout is returned when a launched subprocess
// does not hand back its control URL before the configured deadline
// (§4.5). No tool-listing probe is made.
type ErrSubprocessLaunchTimeout struct {
	Pair string
}

func (e *ErrSubprocessLaunchTimeout) Error() string {
	return fmt.Sprintf("subprocess launch timed out for pair %s", e.Pair)
}

// basePort is the starting point for the monotonic port counter
// (§4.5: "P drawn from a monotonic counter starting at a base port").
const basePort = 8900

// BrowserPathEnvVar is the environment variable the pool sets
// unconditionally on every launch, per §4.5: "set unconditionally on
// every launch, not conditionally by engine" (needed for engines like
// WebKit where auto-detection fails).
const BrowserPathEnvVar = "TESTGPT_BROWSER_PATH"

type entry struct {
	mu      sync.Mutex // serializes acquires for this pair (§5 concurrency discipline)
	browser *rod.Browser
	launch  *launcher.Launcher
	handle  *browsertool.Handle
	healthy bool
}

func pairKey(vp domain.ViewportProfile, br domain.BrowserProfile) string {
	return vp.Name + "|" + br.Name
}

// Pool owns the lifetime of every automation subprocess launched
// during one orchestration. It is process-local and not shared across
// runs (§4.5, §5).
type Pool struct {
	log            zerolog.Logger
	launchTimeout  time.Duration
	browserPathOverride string

	mu      sync.Mutex
	entries map[string]*entry
	port    int64
}

// New creates a Pool. browserPathOverride is the value set for
// BrowserPathEnvVar on every subprocess launch.
func New(log zerolog.Logger, launchTimeout time.Duration, browserPathOverride string) *Pool {
	return &Pool{
		log:                 log,
		launchTimeout:       launchTimeout,
		browserPathOverride: browserPathOverride,
		entries:             make(map[string]*entry),
		port:                basePort - 1,
	}
}

func (p *Pool) nextPort() int64 {
	return atomic.AddInt64(&p.port, 1)
}

// Acquire returns a healthy ToolHandle for the (viewport, browser)
// pair, launching a fresh subprocess if none exists yet or the
// existing one is unhealthy (§4.5). Network conditions (§4.10) are
// (re-)applied on every call, including cache hits, since a single
// cached subprocess serves every network profile a cell targets for
// that pair and network may differ between successive calls.
func (p *Pool) Acquire(ctx context.Context, vp domain.ViewportProfile, br domain.BrowserProfile, np domain.NetworkProfile) (*browsertool.Handle, error) {
	key := pairKey(vp, br)

	p.mu.Lock()
	e, ok := p.entries[key]
	if !ok {
		e = &entry{}
		p.entries[key] = e
	}
	p.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.healthy && e.handle != nil {
		if err := e.handle.ApplyNetwork(np); err != nil {
			return nil, err
		}
		return e.handle, nil
	}

	handle, err := p.launch(ctx, key, vp, br, np)
	if err != nil {
		// e.mu is already held here, so drop and tear down the entry
		// directly; evictLocked would try to lock e.mu again.
		p.mu.Lock()
		if p.entries[key] == e {
			delete(p.entries, key)
		}
		p.mu.Unlock()
		p.terminate(key, e)
		return nil, err
	}

	e.handle = handle
	e.healthy = true
	return handle, nil
}

func (p *Pool) launch(ctx context.Context, key string, vp domain.ViewportProfile, br domain.BrowserProfile, np domain.NetworkProfile) (*browsertool.Handle, error) {
	port := p.nextPort()

	l := launcher.New().
		Set("remote-debugging-port", fmt.Sprintf("%d", port)).
		Env(fmt.Sprintf("%s=%s", BrowserPathEnvVar, p.browserPathOverride))
	if br.ExecutablePath != "" {
		l = l.Bin(br.ExecutablePath)
	}
	for _, arg := range br.LaunchArgs {
		l = l.Append(arg)
	}
	for _, arg := range vp.LaunchArgs {
		l = l.Append(arg)
	}

	launchCtx, cancel := context.WithTimeout(ctx, p.launchTimeout)
	defer cancel()

	urlCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		u, err := l.Launch()
		if err != nil {
			errCh <- err
			return
		}
		urlCh <- u
	}()

	var controlURL string
	select {
	case <-launchCtx.Done():
		return nil, &ErrSubprocessLaunchTimeout{Pair: key}
	case err := <-errCh:
		return nil, fmt.Errorf("launching subprocess for %s: %w", key, err)
	case u := <-urlCh:
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(launchCtx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to subprocess for %s: %w", key, err)
	}

	page, err := browser.Page(nil)
	if err != nil {
		return nil, fmt.Errorf("opening page for %s: %w", key, err)
	}
	if err := browsertool.ApplyViewport(page, vp); err != nil {
		return nil, err
	}

	handle := browsertool.NewHandle(page, key)
	if err := handle.ApplyNetwork(np); err != nil {
		return nil, err
	}

	p.mu.Lock()
	e := p.entries[key]
	e.browser = browser
	e.launch = l
	p.mu.Unlock()

	return handle, nil
}

// Release marks a handle returned; it does not terminate the
// subprocess (§4.5).
func (p *Pool) Release(*browsertool.Handle) {
	// No-op: the pool's cached handle remains the authority on health;
	// release exists only to make the acquire/release contract explicit
	// at call sites (§4.6 point 7).
}

// Evict terminates and removes the subprocess for a pair, so the next
// Acquire for that pair launches fresh (§4.5's failure-semantics rule:
// launch failure or mid-execution connection loss evicts the pair).
func (p *Pool) Evict(vp domain.ViewportProfile, br domain.BrowserProfile) {
	p.evictLocked(pairKey(vp, br))
}

func (p *Pool) evictLocked(key string) {
	p.mu.Lock()
	e, ok := p.entries[key]
	if ok {
		delete(p.entries, key)
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	p.terminate(key, e)
}

func (p *Pool) terminate(key string, e *entry) {
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			p.log.Warn().Str("pair", key).Err(err).Msg("browser close failed during eviction")
		}
	}
	if e.launch != nil {
		e.launch.Kill()
		e.launch.Cleanup()
	}
}

// Shutdown terminates every tracked subprocess. Failure to terminate
// one must not block termination of others; cleanup errors are logged
// and swallowed, never surfaced as test failures (§4.5, §7's
// CleanupError row).
func (p *Pool) Shutdown() {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*entry)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for key, e := range entries {
		wg.Add(1)
		go func(key string, e *entry) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.log.Warn().Str("pair", key).Interface("panic", r).Msg("panic during subprocess teardown")
				}
			}()
			e.mu.Lock()
			defer e.mu.Unlock()
			p.terminate(key, e)
		}(key, e)
	}
	wg.Wait()
}

// Live reports how many subprocesses the pool currently owns, used by
// the testable "pool.shutdown() leaves zero subprocesses" property (§8).
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// AsOrchestratorPool narrows Pool to the interface internal/orchestrator
// and internal/executor consume (executor.ToolHandle instead of the
// concrete *browsertool.Handle), so the real binary can wire a *Pool
// in wherever those packages expect a handle-returning Acquire.
func (p *Pool) AsOrchestratorPool() orchestratorPool { return orchestratorPool{p} }

type orchestratorPool struct{ *Pool }

func (o orchestratorPool) Acquire(ctx context.Context, vp domain.ViewportProfile, br domain.BrowserProfile, np domain.NetworkProfile) (executor.ToolHandle, error) {
	handle, err := o.Pool.Acquire(ctx, vp, br, np)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (o orchestratorPool) Release(h executor.ToolHandle) {
	if handle, ok := h.(*browsertool.Handle); ok {
		o.Pool.Release(handle)
	}
}
