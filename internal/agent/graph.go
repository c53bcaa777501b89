package agent

import (
	"github.com/questor-ai/questor/internal/workflow"
)

// BuildGraph declares the assistant's workflow:
//
//	decide -> expand -> prepare -> {local,web,hybrid}_search -> judge -> answer
//	                                         ^                    |
//	                                         '------ refine <-----'
//
// judge -> refine -> judge is the refinement back-edge, bounded by the
// loop cap in RouteAfterJudge. When requireApprove is set the search
// nodes form the interrupt set, so every fresh retrieval pauses for
// approval with the pending action already described in state.
func BuildGraph(a *Assistant, requireApprove bool) *workflow.Graph[State] {
	g := workflow.NewGraph[State]().
		AddNode(NodeDecide, a.Decide).
		AddNode(NodeExpand, a.Expand).
		AddNode(NodePrepare, a.Prepare).
		AddNode(NodeLocalSearch, a.LocalSearch).
		AddNode(NodeWebSearch, a.WebSearch).
		AddNode(NodeHybridSearch, a.HybridSearch).
		AddNode(NodeJudge, a.Judge).
		AddNode(NodeRefine, a.Refine).
		AddNode(NodeAnswer, a.Answer).
		SetEntryPoint(NodeDecide).
		AddConditionalEdges(NodeDecide, RouteAfterDecide, NodeExpand, NodeAnswer).
		AddEdge(NodeExpand, NodePrepare).
		AddConditionalEdges(NodePrepare, RouteSearch, NodeLocalSearch, NodeWebSearch, NodeHybridSearch).
		AddEdge(NodeLocalSearch, NodeJudge).
		AddEdge(NodeWebSearch, NodeJudge).
		AddEdge(NodeHybridSearch, NodeJudge).
		AddConditionalEdges(NodeJudge, RouteAfterJudge, NodeRefine, NodeAnswer).
		AddEdge(NodeRefine, NodeJudge).
		AddEdge(NodeAnswer, workflow.End)
	if requireApprove {
		g.InterruptBefore(NodeLocalSearch, NodeWebSearch, NodeHybridSearch)
	}
	return g
}
