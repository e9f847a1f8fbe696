// Package domain holds the core data types shared across every
// TestGPT component: profiles, requests, plans, results, and artifacts.
// Keeping them in one leaf package avoids import cycles between the
// catalog, parser, plan builder, pool, executor, and aggregator.
package domain

import "time"

// ViewportProfile describes one named device/viewport emulation target.
// Immutable once loaded from the catalog document at startup.
type ViewportProfile struct {
	Name              string   `json:"name" toml:"name"`
	DisplayName       string   `json:"display_name" toml:"display_name"`
	Width             int      `json:"width" toml:"width"`
	Height            int      `json:"height" toml:"height"`
	DeviceScaleFactor float64  `json:"device_scale_factor" toml:"device_scale_factor"`
	IsMobile          bool     `json:"is_mobile" toml:"is_mobile"`
	DeviceClass       string   `json:"device_class" toml:"device_class"`
	LaunchArgs        []string `json:"launch_args,omitempty" toml:"launch_args"`
}

// Engine identifies the browser engine family a BrowserProfile drives.
type Engine string

const (
	EngineChromium Engine = "chromium"
	EngineWebkit   Engine = "webkit"
	EngineFirefox  Engine = "firefox"
)

// Platform identifies whether a BrowserProfile targets desktop or mobile.
type Platform string

const (
	PlatformDesktop Platform = "desktop"
	PlatformMobile  Platform = "mobile"
)

// BrowserProfile describes one named browser engine configuration.
// Immutable once loaded from the catalog document at startup.
type BrowserProfile struct {
	Name           string   `json:"name" toml:"name"`
	DisplayName    string   `json:"display_name" toml:"display_name"`
	Engine         Engine   `json:"engine" toml:"engine"`
	Platform       Platform `json:"platform" toml:"platform"`
	LaunchArgs     []string `json:"launch_args,omitempty" toml:"launch_args"`
	ExecutablePath string   `json:"executable_path,omitempty" toml:"executable_path"`
}

// NetworkProfile describes one named network throttling condition.
// Immutable once loaded from the catalog document at startup. The
// baseline profile is always named "normal".
type NetworkProfile struct {
	Name          string  `json:"name" toml:"name"`
	DisplayName   string  `json:"display_name" toml:"display_name"`
	LatencyMs     int     `json:"latency_ms" toml:"latency_ms"`
	DownloadKbps  int     `json:"download_kbps" toml:"download_kbps"`
	UploadKbps    int     `json:"upload_kbps" toml:"upload_kbps"`
	PacketLossPct float64 `json:"packet_loss_pct" toml:"packet_loss_pct"`
}

// NormalNetwork is the name of the baseline network profile.
const NormalNetwork = "normal"

// ParsedRequest is the structured result of parsing a raw natural
// language testing request.
type ParsedRequest struct {
	RawMessage          string   `json:"raw_message"`
	TargetURL           string   `json:"target_url"`
	FlowNames           []string `json:"flow_names"`
	ViewportNames       []string `json:"viewport_names"`
	BrowserNames        []string `json:"browser_names"`
	NetworkNames        []string `json:"network_names"`
	IsRerun             bool     `json:"is_rerun"`
	RerunReference       string   `json:"rerun_reference,omitempty"`
	CustomUserInstruction string `json:"custom_user_instruction,omitempty"`
}

// StepAction enumerates the fixed tool-protocol actions a TestStep may
// invoke. "custom" steps are interpreted by the agent from their
// expected outcome description alone.
type StepAction string

const (
	ActionNavigate        StepAction = "navigate"
	ActionClick           StepAction = "click"
	ActionFill            StepAction = "fill"
	ActionWaitForSelector StepAction = "wait_for_selector"
	ActionAssertVisible   StepAction = "assert_visible"
	ActionScreenshot      StepAction = "screenshot"
	ActionCustom          StepAction = "custom"
)

// TestStep is one objective, measurable action within a TestFlow.
type TestStep struct {
	StepNumber      int        `json:"step_number"`
	Action          StepAction `json:"action"`
	Target          string     `json:"target,omitempty"`
	Value           string     `json:"value,omitempty"`
	ExpectedOutcome string     `json:"expected_outcome"`
	TimeoutSeconds  int        `json:"timeout_seconds"`
}

// TestFlow is an ordered user journey: a named sequence of TestSteps.
type TestFlow struct {
	FlowName string     `json:"flow_name"`
	Steps    []TestStep `json:"steps"`
}

// MatrixCell is one point in the test matrix: a flow run against one
// viewport, on one browser engine, under one network profile.
type MatrixCell struct {
	CellID    string         `json:"cell_id"`
	Flow      TestFlow       `json:"flow"`
	Viewport  ViewportProfile `json:"viewport"`
	Browser   BrowserProfile  `json:"browser"`
	Network   NetworkProfile  `json:"network"`
	CreatedAt time.Time      `json:"created_at"`
}

// TestPlan is the full matrix expansion of a ParsedRequest (or a
// rebuild from a persisted ScenarioDefinition on re-run).
type TestPlan struct {
	PlanID              string       `json:"plan_id"`
	ScenarioID          string       `json:"scenario_id"`
	ScenarioName        string       `json:"scenario_name"`
	TargetURL           string       `json:"target_url"`
	UserRequest         string       `json:"user_request"`
	Flows               []TestFlow   `json:"flows"`
	Cells               []MatrixCell `json:"cells"`
	TotalCells          int          `json:"total_cells"`
	EstimatedDurationS  int          `json:"estimated_duration_s"`
}

// EnvironmentMatrix is the union of catalog profile names a
// ScenarioDefinition's flows actually reference.
type EnvironmentMatrix struct {
	Viewports []string `json:"viewports"`
	Browsers  []string `json:"browsers"`
	Networks  []string `json:"networks"`
}

// ScenarioDefinition is the durable, replayable record of one test
// scenario. Re-saving under the same scenario_id preserves CreatedAt
// and refreshes LastRunAt only.
type ScenarioDefinition struct {
	ScenarioID        string            `json:"scenario_id"`
	ScenarioName      string            `json:"scenario_name"`
	TargetURL         string            `json:"target_url"`
	Flows             []TestFlow        `json:"flows"`
	EnvironmentMatrix EnvironmentMatrix `json:"environment_matrix"`
	Tags              []string          `json:"tags,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	LastRunAt         time.Time         `json:"last_run_at"`
}

// ScenarioSummary is the lightweight listing projection of a
// ScenarioDefinition returned by list_all_scenarios.
type ScenarioSummary struct {
	ScenarioID   string    `json:"scenario_id"`
	ScenarioName string    `json:"scenario_name"`
	TargetURL    string    `json:"target_url"`
	Tags         []string  `json:"tags,omitempty"`
	LastRunAt    time.Time `json:"last_run_at"`
}

// StepStatus is the pass/fail/skip outcome of one TestStep.
type StepStatus string

const (
	StepPass StepStatus = "PASS"
	StepFail StepStatus = "FAIL"
	StepSkip StepStatus = "SKIP"
)

// StepResult records the outcome of executing one TestStep.
type StepResult struct {
	StepNumber    int        `json:"step_number"`
	Status        StepStatus `json:"status"`
	ActualOutcome string     `json:"actual_outcome"`
	DurationMs    int64      `json:"duration_ms"`
	Error         string     `json:"error,omitempty"`
}

// CellStatus is the overall pass/fail outcome of one MatrixCell.
type CellStatus string

const (
	CellPass CellStatus = "PASS"
	CellFail CellStatus = "FAIL"
)

// FailurePriority classifies a failed cell by how central the failure
// is: P0 on baseline network + standard viewport, P1 when network
// induced, P2 otherwise (edge viewport).
type FailurePriority string

const (
	PriorityP0 FailurePriority = "P0"
	PriorityP1 FailurePriority = "P1"
	PriorityP2 FailurePriority = "P2"
)

// CellResult is the outcome of executing one MatrixCell.
type CellResult struct {
	CellID              string          `json:"cell_id"`
	Status              CellStatus      `json:"status"`
	StepResults         []StepResult    `json:"step_results"`
	DurationMs          int64           `json:"duration_ms"`
	Screenshots         []string        `json:"screenshots,omitempty"`
	ConsoleErrors       []string        `json:"console_errors,omitempty"`
	FailureSummary      string          `json:"failure_summary,omitempty"`
	FailurePriority     FailurePriority `json:"failure_priority,omitempty"`
	AgentResponseSummary string         `json:"agent_response_summary,omitempty"`
}

// OverallStatus is the rolled-up outcome of a RunArtifact.
type OverallStatus string

const (
	OverallPass    OverallStatus = "PASS"
	OverallFail    OverallStatus = "FAIL"
	OverallPartial OverallStatus = "PARTIAL"
)

// DimensionCount is a pass/total tally for one profile name within a
// dimension rollup (by_viewport, by_browser, by_network).
type DimensionCount struct {
	Pass  int `json:"pass"`
	Total int `json:"total"`
}

// Event is one inbound tuple at the Event Intake surface (§6): an
// externally-sourced addressable message, before any parsing.
type Event struct {
	EventID   string
	Timestamp time.Time
	Channel   string
	User      string
	Body      string
}

// StabilityOutcome narrows a scenario run to the two outcomes the
// Stability Tracker (C12) distinguishes — this spec's data model has
// no infra-error outcome distinct from FAIL (§4.12).
type StabilityOutcome string

const (
	StabilityPass StabilityOutcome = "PASS"
	StabilityFail StabilityOutcome = "FAIL"
)

// StabilityRecord is one windowed entry in a scenario's run history
// (§3, §4.12).
type StabilityRecord struct {
	ScenarioID string           `json:"scenario_id"`
	Outcome    StabilityOutcome `json:"outcome"`
	RunID      string           `json:"run_id"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// StabilityMetrics is the computed flake-rate snapshot for a scenario
// (§3, §4.12).
type StabilityMetrics struct {
	ScenarioID          string  `json:"scenario_id"`
	WindowSize          int     `json:"window_size"`
	PassCount           int     `json:"pass_count"`
	FailCount           int     `json:"fail_count"`
	FlakeRate           float64 `json:"flake_rate"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	ConsecutivePasses   int     `json:"consecutive_passes"`
	Quarantined         bool    `json:"quarantined"`
}

// RunArtifact is the immutable record of one orchestration of a
// TestPlan. Append-only after emission; never mutated.
type RunArtifact struct {
	RunID             string                     `json:"run_id"`
	ScenarioID        string                     `json:"scenario_id"`
	StartedAt         time.Time                  `json:"started_at"`
	CompletedAt       time.Time                  `json:"completed_at"`
	OverallStatus     OverallStatus              `json:"overall_status"`
	TotalCells        int                        `json:"total_cells"`
	PassedCells       int                        `json:"passed_cells"`
	FailedCells       int                        `json:"failed_cells"`
	CellResults       []CellResult               `json:"cell_results"`
	FailuresByPriority map[FailurePriority][]string `json:"failures_by_priority"`
	ByViewport        map[string]DimensionCount  `json:"by_viewport"`
	ByBrowser         map[string]DimensionCount  `json:"by_browser"`
	ByNetwork         map[string]DimensionCount  `json:"by_network"`
	Summary           string                     `json:"summary,omitempty"`
}
