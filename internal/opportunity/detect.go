// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package opportunity surfaces gap, transfer, and combination openings by
// traversing a finalized opportunity graph. Detection is deterministic:
// the same graph and thresholds always yield the same ordered list.
// Implements: prd008-ideation (R2.4-R2.6); docs/ARCHITECTURE § Opportunity Detection.
package opportunity

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/LiZaiyuan0619/IGen/internal/graphbuild"
	"github.com/LiZaiyuan0619/IGen/pkg/types"
)

// Detector finds research opportunities on a finalized graph.
type Detector struct {
	cfg    types.GraphConfig
	logger *zap.Logger
}

// NewDetector returns a Detector with defaults applied.
func NewDetector(cfg types.GraphConfig, logger *zap.Logger) *Detector {
	if cfg.SalienceThreshold <= 0 {
		cfg.SalienceThreshold = 0.6
	}
	if cfg.GapDegreeThreshold <= 0 {
		cfg.GapDegreeThreshold = 2
	}
	if cfg.DenseDegreeThreshold <= 0 {
		cfg.DenseDegreeThreshold = 3
	}
	if cfg.HopLimit <= 0 {
		cfg.HopLimit = 3
	}
	if cfg.SalienceWeight <= 0 {
		cfg.SalienceWeight = 1.0
	}
	if cfg.DistancePenalty <= 0 {
		cfg.DistancePenalty = 0.05
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Detect returns every opportunity on the graph, sorted by descending
// priority with ties broken by opportunity ID. No opportunity is
// silently dropped; anchors referencing missing nodes (which the graph
// invariants rule out) are logged as a bug signal and skipped.
func (d *Detector) Detect(g *graphbuild.Graph) []types.Opportunity {
	var opps []types.Opportunity
	opps = append(opps, d.detectGaps(g)...)
	opps = append(opps, d.detectTransfers(g)...)
	opps = append(opps, d.detectCombinations(g)...)

	valid := opps[:0]
	for _, o := range opps {
		if missing := missingAnchors(g, o); len(missing) > 0 {
			// Defensive: graph invariants make this unreachable.
			d.logger.Error("opportunity anchors reference missing nodes, dropping",
				zap.String("opportunity", o.ID),
				zap.Strings("missing", missing))
			continue
		}
		valid = append(valid, o)
	}

	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Priority != valid[j].Priority {
			return valid[i].Priority > valid[j].Priority
		}
		return valid[i].ID < valid[j].ID
	})
	return valid
}

func missingAnchors(g *graphbuild.Graph, o types.Opportunity) []string {
	var missing []string
	for _, id := range o.AnchorNodes {
		if _, ok := g.Node(id); !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// detectGaps finds salient but under-connected nodes: salience above the
// threshold, degree below the gap degree threshold.
func (d *Detector) detectGaps(g *graphbuild.Graph) []types.Opportunity {
	var opps []types.Opportunity
	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		deg := g.Degree(id)
		if n.Salience < d.cfg.SalienceThreshold || deg >= d.cfg.GapDegreeThreshold {
			continue
		}
		opps = append(opps, types.Opportunity{
			ID:          opportunityID(types.OppGap, id),
			Kind:        types.OppGap,
			AnchorNodes: []string{id},
			Rationale: fmt.Sprintf(
				"%s %q is salient (%.2f) but under-connected (degree %d): important yet under-explored in the surveyed literature",
				n.Kind, n.Label, n.Salience, deg),
			Priority: d.cfg.SalienceWeight * n.Salience,
		})
	}
	return opps
}

// detectTransfers finds a relation pattern around one densely-connected
// node that has no structural analog around another dense node sharing a
// common ancestor concept. The analog check compares relation multisets:
// the target neighborhood must contain some node whose incident relation
// bag covers the source node's.
func (d *Detector) detectTransfers(g *graphbuild.Graph) []types.Opportunity {
	hubs := d.denseNodes(g)

	var opps []types.Opportunity
	for _, src := range hubs {
		srcPattern := g.RelationMultiset(src)
		for _, dst := range hubs {
			if src == dst {
				continue
			}
			ancestor, ok := sharedAncestorConcept(g, src, dst)
			if !ok {
				continue
			}
			if hasAnalog(g, dst, srcPattern) {
				continue
			}

			sn, _ := g.Node(src)
			dn, _ := g.Node(dst)
			dist := directedDistance(g, src, dst, d.cfg.HopLimit)
			opps = append(opps, types.Opportunity{
				ID:          opportunityID(types.OppTransfer, src, dst),
				Kind:        types.OppTransfer,
				AnchorNodes: []string{src, dst},
				Rationale: fmt.Sprintf(
					"the relation pattern around %q (%s) has no structural analog around %q; both connect to concept %q, suggesting the pattern may transfer",
					sn.Label, formatPattern(srcPattern), dn.Label, ancestor),
				Priority: d.cfg.SalienceWeight*(sn.Salience+dn.Salience)/2 -
					d.cfg.DistancePenalty*float64(dist),
			})
		}
	}
	return opps
}

// detectCombinations finds pairs of high-salience nodes with no directed
// path between them within the hop limit but at least one shared
// neighbor reachable in two hops from both.
func (d *Detector) detectCombinations(g *graphbuild.Graph) []types.Opportunity {
	ids := g.NodeIDs()

	var opps []types.Opportunity
	for i, a := range ids {
		an, _ := g.Node(a)
		if an.Salience < d.cfg.SalienceThreshold {
			continue
		}
		fromA := g.WithinHops(a, 2)

		for _, b := range ids[i+1:] {
			bn, _ := g.Node(b)
			if bn.Salience < d.cfg.SalienceThreshold {
				continue
			}
			if g.HasPathWithin(a, b, d.cfg.HopLimit) || g.HasPathWithin(b, a, d.cfg.HopLimit) {
				continue
			}

			meet, dist, ok := meetingPoint(fromA, g.WithinHops(b, 2))
			if !ok {
				continue
			}

			opps = append(opps, types.Opportunity{
				ID:          opportunityID(types.OppCombination, a, b),
				Kind:        types.OppCombination,
				AnchorNodes: []string{a, b},
				Rationale: fmt.Sprintf(
					"%q (salience %.2f) and %q (salience %.2f) are disconnected but meet at %q %d hops apart, suggesting unexplored synergy",
					an.Label, an.Salience, bn.Label, bn.Salience, meet, dist),
				Priority: d.cfg.SalienceWeight*(an.Salience+bn.Salience)/2 -
					d.cfg.DistancePenalty*float64(dist),
			})
		}
	}
	return opps
}

// denseNodes returns node IDs with degree at or above the dense
// threshold, in lexicographic order.
func (d *Detector) denseNodes(g *graphbuild.Graph) []string {
	var hubs []string
	for _, id := range g.NodeIDs() {
		if g.Degree(id) >= d.cfg.DenseDegreeThreshold {
			hubs = append(hubs, id)
		}
	}
	return hubs
}

// sharedAncestorConcept returns a concept node adjacent to both hubs, if
// one exists. Lexicographically smallest wins for determinism.
func sharedAncestorConcept(g *graphbuild.Graph, a, b string) (string, bool) {
	bNeighbors := make(map[string]bool)
	for _, n := range g.Neighbors(b) {
		bNeighbors[n] = true
	}
	for _, n := range g.Neighbors(a) {
		if !bNeighbors[n] {
			continue
		}
		node, ok := g.Node(n)
		if ok && node.Kind == types.NodeConcept {
			return node.Label, true
		}
	}
	return "", false
}

// hasAnalog reports whether any node in dst's closed neighborhood has a
// relation multiset covering pattern.
func hasAnalog(g *graphbuild.Graph, dst string, pattern map[types.RelationKind]int) bool {
	candidates := append(g.Neighbors(dst), dst)
	for _, id := range candidates {
		if covers(g.RelationMultiset(id), pattern) {
			return true
		}
	}
	return false
}

// covers reports whether multiset a contains multiset b.
func covers(a, b map[types.RelationKind]int) bool {
	for rel, n := range b {
		if a[rel] < n {
			return false
		}
	}
	return true
}

// directedDistance returns the hop distance from a to b, or maxHops+1
// when no path exists within the limit.
func directedDistance(g *graphbuild.Graph, a, b string, maxHops int) int {
	if d, ok := g.WithinHops(a, maxHops)[b]; ok {
		return d
	}
	return maxHops + 1
}

// meetingPoint returns the node reachable from both anchors with the
// smallest combined distance, and that distance. Direct mutual neighbors
// count: two anchors one hop from a shared node meet two hops apart, not
// four. Ties break on the lexicographically smallest ID.
func meetingPoint(fromA, fromB map[string]int) (string, int, bool) {
	var best string
	bestDist := -1
	for id, da := range fromA {
		db, ok := fromB[id]
		if !ok {
			continue
		}
		d := da + db
		if bestDist < 0 || d < bestDist || (d == bestDist && id < best) {
			best, bestDist = id, d
		}
	}
	return best, bestDist, bestDist >= 0
}

// formatPattern renders a relation multiset deterministically.
func formatPattern(ms map[types.RelationKind]int) string {
	rels := make([]string, 0, len(ms))
	for rel, n := range ms {
		rels = append(rels, fmt.Sprintf("%s×%d", rel, n))
	}
	sort.Strings(rels)
	return strings.Join(rels, ", ")
}

// opportunityID derives a stable ID from kind and anchors: the first 12
// hex characters of SHA-256 over the joined parts.
func opportunityID(kind types.OpportunityKind, anchors ...string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, a := range anchors {
		h.Write([]byte("|"))
		h.Write([]byte(a))
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}
