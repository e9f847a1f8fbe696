// Package browsertool implements the fixed tool-protocol contract
// (§6, C10) the Cell Executor and Model Agent drive, backed
// concretely by go-rod's CDP client rather than an opaque stdio
// binary: the launched subprocess is itself a browser engine, and
// go-rod's launcher+client already satisfy the three protocol
// properties §6 requires (connect handshake, JSON-serializable
// request/response calls, an error channel distinguishing tool errors
// from protocol errors).
package browsertool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// ErrProtocol wraps a failure in the underlying CDP connection itself
// (lost connection, launcher crash) as distinct from a tool-level
// failure (selector not found, assertion failed). The Subprocess Pool
// Manager evicts the owning pair on ErrProtocol (§4.5's "mid-execution
// connection loss" rule); the Cell Executor treats a bare tool error
// as an ordinary FAIL without evicting.
type ErrProtocol struct {
	Cause error
}

func (e *ErrProtocol) Error() string { return fmt.Sprintf("tool protocol error: %v", e.Cause) }
func (e *ErrProtocol) Unwrap() error { return e.Cause }

// ConsoleMessage is one captured browser console entry.
type ConsoleMessage struct {
	Level string
	Text  string
}

// Handle is the fixed tool catalog (§6) a Cell Executor/Model Agent
// drives for one (viewport, browser) pair's subprocess.
type Handle struct {
	page   *rod.Page
	pairID string

	mu       sync.Mutex
	console  []ConsoleMessage
	closed   bool
}

// NewHandle wraps a go-rod Page that has already been created with the
// correct device emulation applied (§4.5: emulation happens at
// context-creation time, before this constructor is called — never as
// a later resize tool call).
func NewHandle(page *rod.Page, pairID string) *Handle {
	h := &Handle{page: page, pairID: pairID}
	page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		h.mu.Lock()
		defer h.mu.Unlock()
		text := ""
		for _, arg := range e.Args {
			if arg.Value.Val() != nil {
				text += fmt.Sprintf("%v ", arg.Value.Val())
			}
		}
		h.console = append(h.console, ConsoleMessage{Level: string(e.Type), Text: text})
	})()
	return h
}

func (h *Handle) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, rod.ErrCtxNotFound) {
		return &ErrProtocol{Cause: err}
	}
	return err
}

// Navigate implements the navigate(url) tool.
func (h *Handle) Navigate(ctx context.Context, url string) error {
	p := h.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return h.classify(fmt.Errorf("navigate %s: %w", url, err))
	}
	if err := p.WaitLoad(); err != nil {
		return h.classify(fmt.Errorf("wait load %s: %w", url, err))
	}
	return nil
}

// Click implements the click(selector) tool.
func (h *Handle) Click(ctx context.Context, selector string, timeout time.Duration) error {
	p := h.page.Context(ctx).Timeout(timeout)
	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("click %s: element not found: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return h.classify(fmt.Errorf("click %s: %w", selector, err))
	}
	return nil
}

// Fill implements the fill(selector, value) tool.
func (h *Handle) Fill(ctx context.Context, selector, value string, timeout time.Duration) error {
	p := h.page.Context(ctx).Timeout(timeout)
	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("fill %s: element not found: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return h.classify(fmt.Errorf("fill %s: %w", selector, err))
	}
	return nil
}

// WaitForSelector implements the wait_for_selector(selector, timeout) tool.
func (h *Handle) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	p := h.page.Context(ctx).Timeout(timeout)
	if _, err := p.Element(selector); err != nil {
		return fmt.Errorf("wait_for_selector %s: not visible within %s: %w", selector, timeout, err)
	}
	return nil
}

// AssertVisible implements the assert_visible(selector) tool.
func (h *Handle) AssertVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	p := h.page.Context(ctx).Timeout(timeout)
	el, err := p.Element(selector)
	if err != nil {
		return false, nil // not found: a tool-level false, not an error
	}
	visible, err := el.Visible()
	if err != nil {
		return false, h.classify(fmt.Errorf("assert_visible %s: %w", selector, err))
	}
	return visible, nil
}

// Screenshot implements the screenshot(name) tool, writing a PNG to
// path.
func (h *Handle) Screenshot(ctx context.Context, path string) error {
	data, err := h.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return h.classify(fmt.Errorf("screenshot: %w", err))
	}
	return os.WriteFile(path, data, 0644)
}

// ConsoleMessages implements the console_messages() tool, returning
// everything captured since the handle was created.
func (h *Handle) ConsoleMessages() []ConsoleMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ConsoleMessage, len(h.console))
	copy(out, h.console)
	return out
}

// Close implements the close() tool. Closing the page does not
// terminate the owning subprocess — the Pool owns that lifetime.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.page.Close()
}

// PairID identifies the (viewport, browser) pair this handle serves.
func (h *Handle) PairID() string { return h.pairID }
