// Package planbuilder implements the Plan Builder (C3): turning a
// ParsedRequest into a TestPlan by rendering flow templates and
// computing the full Cartesian product of cells.
package planbuilder

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/testgpt-run/testgpt/internal/catalog"
	"github.com/testgpt-run/testgpt/internal/domain"
	"github.com/testgpt-run/testgpt/internal/parser"
)

// ErrEmptyPlan is returned when the computed cell set is empty.
type ErrEmptyPlan struct{}

func (e *ErrEmptyPlan) Error() string { return "no cells to run" }

// AvgCellSeconds is the per-cell duration estimate that Build and
// RebuildFromScenario multiply by the cell count (§4.3 point 5).
const AvgCellSeconds = 45

// Builder constructs TestPlans from ParsedRequests, using the Catalog
// to resolve profile names and a set of flow templates (built-in
// defaults, optionally overridden by an on-disk YAML document).
type Builder struct {
	catalog   *catalog.Catalog
	templates map[string]FlowTemplate
}

// New builds a Builder with the built-in flow templates.
func New(cat *catalog.Catalog) *Builder {
	return &Builder{catalog: cat, templates: defaultTemplates()}
}

// LoadTemplates overrides/extends the built-in flow templates from an
// on-disk YAML document, matching the reference repo's scenario YAML
// authoring convention (internal/tester/scenario.go).
func (b *Builder) LoadTemplates(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading flow template document %s: %w", path, err)
	}
	var doc struct {
		Flows []FlowTemplate `yaml:"flows"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing flow template document %s: %w", path, err)
	}
	for _, tpl := range doc.Flows {
		b.templates[tpl.FlowName] = tpl
	}
	return nil
}

// Build computes a TestPlan for a freshly parsed request.
func (b *Builder) Build(req domain.ParsedRequest) (domain.TestPlan, error) {
	runTimestamp := fmt.Sprintf("%d", time.Now().UnixNano())
	email, phone := extractLiteralsFrom(req)

	flows := make([]domain.TestFlow, 0, len(req.FlowNames))
	for _, name := range req.FlowNames {
		tpl, ok := b.templates[name]
		if !ok {
			tpl = b.templates["landing"]
		}
		flows = append(flows, Render(tpl, req.TargetURL, email, phone))
	}

	viewports := make([]domain.ViewportProfile, 0, len(req.ViewportNames))
	for _, name := range req.ViewportNames {
		v, err := b.catalog.LookupViewport(name)
		if err != nil {
			return domain.TestPlan{}, err
		}
		viewports = append(viewports, v)
	}
	browsers := make([]domain.BrowserProfile, 0, len(req.BrowserNames))
	for _, name := range req.BrowserNames {
		br, err := b.catalog.LookupBrowser(name)
		if err != nil {
			return domain.TestPlan{}, err
		}
		browsers = append(browsers, br)
	}
	networks := make([]domain.NetworkProfile, 0, len(req.NetworkNames))
	for _, name := range req.NetworkNames {
		n, err := b.catalog.LookupNetwork(name)
		if err != nil {
			return domain.TestPlan{}, err
		}
		networks = append(networks, n)
	}

	cells := cartesianProduct(flows, viewports, browsers, networks, runTimestamp)
	if len(cells) == 0 {
		return domain.TestPlan{}, &ErrEmptyPlan{}
	}

	scenarioName := scenarioName(req.TargetURL, flows, len(viewports))
	plan := domain.TestPlan{
		PlanID:             domain.ShortID(),
		ScenarioID:         domain.Slug(scenarioName),
		ScenarioName:       scenarioName,
		TargetURL:          req.TargetURL,
		UserRequest:        req.CustomUserInstruction,
		Flows:              flows,
		Cells:              cells,
		TotalCells:         len(cells),
		EstimatedDurationS: len(cells) * AvgCellSeconds,
	}
	return plan, nil
}

// RebuildFromScenario reconstructs a TestPlan from a persisted
// ScenarioDefinition for the re-run path (§4.8).
func (b *Builder) RebuildFromScenario(s domain.ScenarioDefinition) (domain.TestPlan, error) {
	runTimestamp := fmt.Sprintf("%d", time.Now().UnixNano())

	viewports := make([]domain.ViewportProfile, 0, len(s.EnvironmentMatrix.Viewports))
	for _, name := range s.EnvironmentMatrix.Viewports {
		v, err := b.catalog.LookupViewport(name)
		if err != nil {
			return domain.TestPlan{}, err
		}
		viewports = append(viewports, v)
	}
	browsers := make([]domain.BrowserProfile, 0, len(s.EnvironmentMatrix.Browsers))
	for _, name := range s.EnvironmentMatrix.Browsers {
		br, err := b.catalog.LookupBrowser(name)
		if err != nil {
			return domain.TestPlan{}, err
		}
		browsers = append(browsers, br)
	}
	networks := make([]domain.NetworkProfile, 0, len(s.EnvironmentMatrix.Networks))
	for _, name := range s.EnvironmentMatrix.Networks {
		n, err := b.catalog.LookupNetwork(name)
		if err != nil {
			return domain.TestPlan{}, err
		}
		networks = append(networks, n)
	}

	cells := cartesianProduct(s.Flows, viewports, browsers, networks, runTimestamp)
	if len(cells) == 0 {
		return domain.TestPlan{}, &ErrEmptyPlan{}
	}

	plan := domain.TestPlan{
		PlanID:             domain.ShortID(),
		ScenarioID:         s.ScenarioID,
		ScenarioName:       s.ScenarioName,
		TargetURL:          s.TargetURL,
		UserRequest:        fmt.Sprintf("re-run %s", s.ScenarioName),
		Flows:              s.Flows,
		Cells:              cells,
		TotalCells:         len(cells),
		EstimatedDurationS: len(cells) * AvgCellSeconds,
	}
	return plan, nil
}

// ToScenarioDefinition derives the persisted ScenarioDefinition for a
// built plan (§4.3 point 4, §3 invariant: environment_matrix is the
// union of catalog names actually referenced by the plan's cells).
func ToScenarioDefinition(plan domain.TestPlan) domain.ScenarioDefinition {
	matrix := domain.EnvironmentMatrix{}
	seenV, seenB, seenN := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for _, cell := range plan.Cells {
		if !seenV[cell.Viewport.Name] {
			seenV[cell.Viewport.Name] = true
			matrix.Viewports = append(matrix.Viewports, cell.Viewport.Name)
		}
		if !seenB[cell.Browser.Name] {
			seenB[cell.Browser.Name] = true
			matrix.Browsers = append(matrix.Browsers, cell.Browser.Name)
		}
		if !seenN[cell.Network.Name] {
			seenN[cell.Network.Name] = true
			matrix.Networks = append(matrix.Networks, cell.Network.Name)
		}
	}
	now := time.Now()
	return domain.ScenarioDefinition{
		ScenarioID:        plan.ScenarioID,
		ScenarioName:      plan.ScenarioName,
		TargetURL:         plan.TargetURL,
		Flows:             plan.Flows,
		EnvironmentMatrix: matrix,
		CreatedAt:         now,
		LastRunAt:         now,
	}
}

func extractLiteralsFrom(req domain.ParsedRequest) (email, phone string) {
	return parser.ExtractLiterals(req.RawMessage)
}

func scenarioName(targetURL string, flows []domain.TestFlow, viewportCount int) string {
	host := parser.Host(targetURL)
	primaryFlow := "landing"
	if len(flows) > 0 {
		primaryFlow = flows[0].FlowName
	}
	return fmt.Sprintf("%s %s %dv", host, primaryFlow, viewportCount)
}

func cartesianProduct(flows []domain.TestFlow, viewports []domain.ViewportProfile, browsers []domain.BrowserProfile, networks []domain.NetworkProfile, runTimestamp string) []domain.MatrixCell {
	var cells []domain.MatrixCell
	now := time.Now()
	for _, flow := range flows {
		for _, vp := range viewports {
			for _, br := range browsers {
				for _, net := range networks {
					cells = append(cells, domain.MatrixCell{
						CellID:    domain.CellID(flow.FlowName, vp.Name, br.Name, net.Name, runTimestamp),
						Flow:      flow,
						Viewport:  vp,
						Browser:   br,
						Network:   net,
						CreatedAt: now,
					})
				}
			}
		}
	}
	return cells
}
