package pool

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/testgpt-run/testgpt/internal/domain"
)

func TestPairKeyDistinguishesViewportAndBrowser(t *testing.T) {
	p := New(zerolog.Nop(), 0, "")
	require.Equal(t, 0, p.Live())

	vpA, vpB := domain.ViewportProfile{Name: "desktop-standard"}, domain.ViewportProfile{Name: "iphone-13-pro"}
	brA, brB := domain.BrowserProfile{Name: "chromium-desktop"}, domain.BrowserProfile{Name: "webkit-desktop"}
	require.NotEqual(t, pairKey(vpA, brA), pairKey(vpB, brA))
	require.NotEqual(t, pairKey(vpA, brA), pairKey(vpA, brB))
}

func TestShutdownOnEmptyPoolIsNoop(t *testing.T) {
	p := New(zerolog.Nop(), 0, "")
	p.Shutdown()
	require.Equal(t, 0, p.Live())
}

func TestNextPortIsMonotonic(t *testing.T) {
	p := New(zerolog.Nop(), 0, "")
	first := p.nextPort()
	second := p.nextPort()
	require.Equal(t, first+1, second)
	require.GreaterOrEqual(t, first, int64(basePort))
}

func TestEvictOfUnknownPairIsNoop(t *testing.T) {
	p := New(zerolog.Nop(), 0, "")
	p.Evict(domain.ViewportProfile{Name: "desktop-standard"}, domain.BrowserProfile{Name: "chromium-desktop"})
	require.Equal(t, 0, p.Live())
}
