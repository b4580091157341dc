// Package flow implements the conditional survey flow engine.
//
// This file contains the GraphAnalyzer: static structural analysis of a
// survey's rule set. The analysis is survey-scoped and response-independent;
// it runs on authoring/publishing workflows, not on the hot response path,
// and its findings are advisory.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/models"
	"github.com/percymukwenya/SurveyBucksV2-sub000/internal/store"
)

// DefaultReachabilityPasses bounds the reachability propagation loop.
const DefaultReachabilityPasses = 20

// GraphAnalyzer inspects a survey's rule graph for structural defects: cycles,
// unreachable questions, and invalid target references.
type GraphAnalyzer struct {
	store     store.Store
	maxPasses int
}

// NewGraphAnalyzer creates a GraphAnalyzer backed by the given store. The
// store is only used by AnalyzeSurvey; the individual analyses operate on a
// rule snapshot passed by the caller.
func NewGraphAnalyzer(st store.Store) *GraphAnalyzer {
	return &GraphAnalyzer{store: st, maxPasses: DefaultReachabilityPasses}
}

// SetMaxPasses overrides the reachability pass cap. Values below 1 are ignored.
func (g *GraphAnalyzer) SetMaxPasses(n int) {
	if n >= 1 {
		g.maxPasses = n
	}
}

// ruleGraph is an index arena over the question ids referenced by a rule set,
// with adjacency stored as index lists. Only show/hide rules contribute
// edges; section-level actions do not affect question reachability.
type ruleGraph struct {
	ids   []string       // index -> question id, insertion order
	index map[string]int // question id -> index
	adj   [][]int        // visibility edges, source index -> target indices
}

// buildRuleGraph indexes every question id referenced by the active rules and
// records the visibility edges.
func buildRuleGraph(rules []models.LogicRule) *ruleGraph {
	g := &ruleGraph{index: make(map[string]int)}

	intern := func(id string) int {
		if i, ok := g.index[id]; ok {
			return i
		}
		i := len(g.ids)
		g.index[id] = i
		g.ids = append(g.ids, id)
		g.adj = append(g.adj, nil)
		return i
	}

	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		src := intern(r.SourceQuestionID)
		for _, target := range ruleTargets(r) {
			ti := intern(target)
			if r.LogicType.AffectsVisibility() {
				g.adj[src] = append(g.adj[src], ti)
			}
		}
	}
	return g
}

// DetectCycles finds cycles in the show/hide rule graph via depth-first
// search with an explicit recursion stack. Every node is checked, so isolated
// cyclic islands are found too.
func (g *GraphAnalyzer) DetectCycles(rules []models.LogicRule) []string {
	graph := buildRuleGraph(rules)
	n := len(graph.ids)

	visited := make([]bool, n)
	onStack := make([]bool, n)
	var stack []int
	var cycles []string

	var visit func(node int)
	visit = func(node int) {
		visited[node] = true
		onStack[node] = true
		stack = append(stack, node)

		for _, next := range graph.adj[node] {
			if onStack[next] {
				// Back edge: the cycle is the stack segment from next to node.
				start := 0
				for i, s := range stack {
					if s == next {
						start = i
						break
					}
				}
				parts := make([]string, 0, len(stack)-start+1)
				for _, s := range stack[start:] {
					parts = append(parts, graph.ids[s])
				}
				parts = append(parts, graph.ids[next])
				cycles = append(cycles, "cycle detected: "+strings.Join(parts, " -> "))
				continue
			}
			if !visited[next] {
				visit(next)
			}
		}

		stack = stack[:len(stack)-1]
		onStack[node] = false
	}

	for node := 0; node < n; node++ {
		if !visited[node] {
			visit(node)
		}
	}
	return cycles
}

// FindUnreachable reports the questions that cannot become visible through any
// combination of rules. The analysis is structural: a show edge counts as
// traversable regardless of its condition's truth at runtime. Questions not
// gated behind any show rule are reachable by default; hide edges from
// reachable sources remove their targets. The propagation is bounded by the
// pass cap; non-convergence is logged.
func (g *GraphAnalyzer) FindUnreachable(surveyID string, rules []models.LogicRule) []string {
	unreachable, converged := g.findUnreachable(rules)
	if !converged {
		slog.Warn("GraphAnalyzer.FindUnreachable did not converge", "surveyID", surveyID, "maxPasses", g.maxPasses)
	}
	return unreachable
}

func (g *GraphAnalyzer) findUnreachable(rules []models.LogicRule) ([]string, bool) {
	graph := buildRuleGraph(rules)
	active := activeRules(rules)

	// Base set: referenced questions minus show targets.
	reachable := make(map[string]bool)
	showTargets := make(map[string]bool)
	for _, r := range active {
		if r.LogicType.IsShow() {
			for _, target := range ruleTargets(r) {
				showTargets[target] = true
			}
		}
	}
	for _, id := range graph.ids {
		if !showTargets[id] {
			reachable[id] = true
		}
	}

	converged := false
	for pass := 0; pass < g.maxPasses; pass++ {
		changed := false
		for _, r := range active {
			if !r.LogicType.AffectsVisibility() || !reachable[r.SourceQuestionID] {
				continue
			}
			for _, target := range ruleTargets(r) {
				if r.LogicType.IsShow() {
					if !reachable[target] {
						reachable[target] = true
						changed = true
					}
				} else if reachable[target] {
					delete(reachable, target)
					changed = true
				}
			}
		}
		if !changed {
			converged = true
			break
		}
	}

	var unreachable []string
	for _, id := range graph.ids {
		if !reachable[id] {
			unreachable = append(unreachable, id)
		}
	}
	sort.Strings(unreachable)
	return unreachable, converged
}

// FindInvalidTargets flags rules whose target question is its own source
// (self-reference) or does not exist in the survey (orphan reference).
// questionIDs is the survey's full question set.
func (g *GraphAnalyzer) FindInvalidTargets(rules []models.LogicRule, questionIDs []string) []string {
	known := make(map[string]bool, len(questionIDs))
	for _, id := range questionIDs {
		known[id] = true
	}

	var invalid []string
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		for _, target := range ruleTargets(r) {
			if target == r.SourceQuestionID {
				invalid = append(invalid, fmt.Sprintf("rule %s targets its own source question %s", r.ID, target))
				continue
			}
			if !known[target] {
				invalid = append(invalid, fmt.Sprintf("rule %s targets question %s which does not exist in the survey", r.ID, target))
			}
		}
	}
	return invalid
}

// BuildVisualization renders the survey's rule graph as a structure for
// authoring tools: question nodes, conditional visibility edges, decision
// points (questions with branching rules), end points (questions whose rules
// can terminate or screen out), and orphaned (unreachable) questions.
func (g *GraphAnalyzer) BuildVisualization(surveyID string, rules []models.LogicRule) *models.SurveyFlowVisualization {
	graph := buildRuleGraph(rules)
	active := activeRules(rules)

	ruleCount := make(map[string]int)
	endPoints := make(map[string]bool)
	var edges []models.FlowEdge
	for _, r := range active {
		ruleCount[r.SourceQuestionID]++
		if r.LogicType == models.LogicEndSurvey || r.LogicType == models.LogicDisqualify {
			endPoints[r.SourceQuestionID] = true
		}
		if !r.LogicType.AffectsVisibility() {
			continue
		}
		for _, target := range ruleTargets(r) {
			edges = append(edges, models.FlowEdge{
				From:          r.SourceQuestionID,
				To:            target,
				LogicType:     r.LogicType,
				ConditionType: r.ConditionType,
				Condition:     r.ConditionValue,
			})
		}
	}

	nodes := make([]models.FlowNode, 0, len(graph.ids))
	var decisionPoints []string
	for _, id := range graph.ids {
		nodes = append(nodes, models.FlowNode{QuestionID: id, RuleCount: ruleCount[id]})
		if ruleCount[id] > 0 {
			decisionPoints = append(decisionPoints, id)
		}
	}

	orphaned, _ := g.findUnreachable(rules)

	return &models.SurveyFlowVisualization{
		SurveyID:          surveyID,
		Nodes:             nodes,
		Edges:             edges,
		DecisionPoints:    decisionPoints,
		EndPoints:         sortedKeys(endPoints),
		OrphanedQuestions: orphaned,
	}
}

// AnalyzeSurvey fetches the survey's rule set and runs every structural
// analysis, assembling the advisory report consumed by publishing workflows.
func (g *GraphAnalyzer) AnalyzeSurvey(ctx context.Context, surveyID string) (*models.GraphAnalysisReport, error) {
	rules, err := g.store.GetSurveyLogic(surveyID)
	if err != nil {
		slog.Error("GraphAnalyzer.AnalyzeSurvey rule fetch failed", "error", err, "surveyID", surveyID)
		return nil, fmt.Errorf("failed to fetch survey logic for %s: %w", surveyID, err)
	}

	questionIDs, err := g.store.GetSurveyQuestionIDs(surveyID)
	if err != nil {
		slog.Error("GraphAnalyzer.AnalyzeSurvey question fetch failed", "error", err, "surveyID", surveyID)
		return nil, fmt.Errorf("failed to fetch survey questions for %s: %w", surveyID, err)
	}

	unreachable, converged := g.findUnreachable(rules)
	report := &models.GraphAnalysisReport{
		SurveyID:             surveyID,
		Cycles:               g.DetectCycles(rules),
		UnreachableQuestions: unreachable,
		InvalidTargets:       g.FindInvalidTargets(rules, questionIDs),
		Converged:            converged,
	}
	if report.HasDefects() {
		slog.Info("GraphAnalyzer.AnalyzeSurvey found structural defects",
			"surveyID", surveyID,
			"cycles", len(report.Cycles),
			"unreachable", len(report.UnreachableQuestions),
			"invalidTargets", len(report.InvalidTargets))
	}
	return report, nil
}
