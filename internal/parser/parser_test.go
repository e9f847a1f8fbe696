package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/testgpt-run/testgpt/internal/catalog"
	"github.com/testgpt-run/testgpt/internal/domain"
)

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]domain.ViewportProfile{
			{Name: "iphone-13-pro"}, {Name: "ipad-air"}, {Name: "desktop-standard"}, {Name: "android-medium"},
		},
		[]domain.BrowserProfile{
			{Name: "chromium-desktop"}, {Name: "webkit-desktop"}, {Name: "webkit-ios"}, {Name: "firefox-desktop"},
		},
		[]domain.NetworkProfile{
			{Name: "normal"}, {Name: "slow-3g"}, {Name: "flaky-edge"},
		},
		nil,
	)
}

func TestExtractURLPreservesSubdomain(t *testing.T) {
	url, ok := ExtractURL("test careers.pointblank.club on iphone")
	require.True(t, ok)
	require.Equal(t, "careers.pointblank.club", url)
}

func TestExtractURLNoFallback(t *testing.T) {
	_, ok := ExtractURL("please test the app, thanks")
	require.False(t, ok)
}

func TestExtractURLSchemeWrapped(t *testing.T) {
	url, ok := ExtractURL("test <http://example.com|example.com> now")
	require.True(t, ok)
	require.Contains(t, url, "example.com")
}

func TestDetectRerunPreservesSpecialReference(t *testing.T) {
	ref, isRerun := DetectRerun("re-run last")
	require.True(t, isRerun)
	require.Equal(t, "last", ref)
}

func TestDetectRerunRunAgain(t *testing.T) {
	ref, isRerun := DetectRerun("run pointblank-signup again")
	require.True(t, isRerun)
	require.Equal(t, "pointblank-signup", ref)
}

func TestDetectFlowsSignup(t *testing.T) {
	require.Equal(t, []string{"signup"}, DetectFlows("test the signup flow"))
}

func TestDetectFlowsDefaultLanding(t *testing.T) {
	require.Equal(t, []string{"landing"}, DetectFlows("test the homepage"))
}

func TestParseSubdomainPreservationEndToEnd(t *testing.T) {
	p := New(testCatalog())
	req, err := p.Parse("test careers.pointblank.club on iphone")
	require.NoError(t, err)
	require.Equal(t, "careers.pointblank.club", req.TargetURL)
	require.Contains(t, req.ViewportNames, "iphone-13-pro")
}

func TestParseMalformedRequest(t *testing.T) {
	p := New(testCatalog())
	_, err := p.Parse("hello there")
	require.Error(t, err)
	var malformed *ErrMalformedRequest
	require.ErrorAs(t, err, &malformed)
}

func TestParseIsDeterministic(t *testing.T) {
	p := New(testCatalog())
	a, errA := p.Parse("test pointblank.club responsive on safari and chrome")
	b, errB := p.Parse("test pointblank.club responsive on safari and chrome")
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Equal(t, a, b)
}

func TestParseRerunShortCircuitsURLExtraction(t *testing.T) {
	p := New(testCatalog())
	req, err := p.Parse("re-run last")
	require.NoError(t, err)
	require.True(t, req.IsRerun)
	require.Equal(t, "last", req.RerunReference)
}
