package browsertool

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/testgpt-run/testgpt/internal/domain"
)

// ApplyViewport sets device emulation on page immediately after
// creation and before any navigation, per §4.5: "correctly... at
// browser-context creation time... post-launch resizing is
// forbidden". There is deliberately no exported "resize" function —
// the fixed tool catalog has none, which structurally enforces the
// rule rather than relying on agent discipline.
func ApplyViewport(page *rod.Page, vp domain.ViewportProfile) error {
	scale := vp.DeviceScaleFactor
	if scale == 0 {
		scale = 1
	}
	err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: scale,
		Mobile:            vp.IsMobile,
	})
	if err != nil {
		return fmt.Errorf("applying viewport %s: %w", vp.Name, err)
	}
	return nil
}

// ApplyNetwork throttles the page's network conditions to match a
// NetworkProfile. The baseline "normal" profile disables throttling.
func ApplyNetwork(page *rod.Page, np domain.NetworkProfile) error {
	cond := proto.NetworkEmulateNetworkConditions{
		Offline:            false,
		Latency:            float64(np.LatencyMs),
		DownloadThroughput: float64(np.DownloadKbps) * 1024 / 8,
		UploadThroughput:   float64(np.UploadKbps) * 1024 / 8,
	}
	if np.Name == domain.NormalNetwork {
		// A throughput of -1 turns throttling off, clearing whatever an
		// earlier cell applied to this cached page.
		cond = proto.NetworkEmulateNetworkConditions{DownloadThroughput: -1, UploadThroughput: -1}
	}
	err := cond.Call(page)
	if err != nil {
		return fmt.Errorf("applying network profile %s: %w", np.Name, err)
	}
	return nil
}

// ApplyNetwork applies network emulation to h's underlying page. Unlike
// viewport, network conditions may legitimately differ between
// successive Acquire calls against the same cached (viewport, browser)
// subprocess (§4.10), so the pool calls this on every acquire rather
// than once at launch.
func (h *Handle) ApplyNetwork(np domain.NetworkProfile) error {
	return ApplyNetwork(h.page, np)
}
