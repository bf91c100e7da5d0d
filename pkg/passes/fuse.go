package passes

import (
	"fmt"

	"github.com/sionflow/sionflowc/pkg/ir"
	"github.com/sionflow/sionflowc/pkg/ir/rules"
)

// Fuse rewrites matched operand patterns into specialized opcodes
// (e.g. Mul+Add -> FMA), iterating to a fixpoint (§4.5).
func Fuse(ctx *Context) bool {
	g := ctx.IR
	for {
		changed := false
		initialCount := len(g.Nodes)
		for i := 0; i < initialCount; i++ {
			if g.Nodes[i].IsRemoved() {
				continue
			}
			for _, rule := range rules.FusionRules {
				if rule.TargetType != g.Nodes[i].Kind {
					continue
				}
				if tryFuse(ctx, int32(i), rule) {
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}
		if !changed {
			return true
		}
	}
}

// tryFuse attempts to apply one fusion rule at node N. It reports
// whether the rule matched and the rewrite was applied.
func tryFuse(ctx *Context, n int32, rule rules.FusionRule) bool {
	g := ctx.IR
	node := g.Nodes[n]
	ports := node.Kind.Meta().Ports

	matchedProducers := make(map[int]int32) // local port -> producer idx
	for _, match := range rule.Matches {
		port := indexOfPort(ports, match.PortName)
		if port < 0 {
			return false
		}
		producerIdx, _ := g.GetSource(n, int32(port))
		if producerIdx == ir.NoNode {
			return false
		}
		producer := g.Nodes[producerIdx]
		if producer.Kind != match.MatchType {
			return false
		}
		if userCount(g, producerIdx) > match.MaxUseCount {
			return false
		}
		matchedProducers[port] = producerIdx
	}

	replacementIdx := g.Add(fmt.Sprintf("%s.fused", node.ID), rule.ReplaceWith, node.Loc)

	matchByPort := make(map[string]rules.FusionMatch, len(rule.Matches))
	for _, m := range rule.Matches {
		matchByPort[m.PortName] = m
	}

	// occupied tracks which of the replacement's ports a matched
	// producer's own inputs have already claimed, so an unmatched
	// original port never overwrites one of them even when port names
	// collide across the two ops (e.g. both ADD and FMA have a "b").
	var occupied [4]bool
	for localPort, portName := range ports {
		if portName == "" {
			continue
		}
		if producerIdx, matched := matchedProducers[localPort]; matched {
			m := matchByPort[portName]
			remapPort := indexOfPort(rule.ReplaceWith.Meta().Ports, m.RemapToPort)
			for innerPort, innerName := range g.Nodes[producerIdx].Kind.Meta().Ports {
				if innerName == "" {
					continue
				}
				dest := remapPort + innerPort
				srcNode, srcPort := g.GetSource(producerIdx, int32(innerPort))
				if srcNode != ir.NoNode {
					g.Connect(srcNode, srcPort, replacementIdx, int32(dest))
				}
				occupied[dest] = true
			}
		}
	}
	for localPort, portName := range ports {
		if portName == "" {
			continue
		}
		if _, matched := matchedProducers[localPort]; matched {
			continue
		}
		srcNode, srcPort := g.GetSource(n, int32(localPort))
		if srcNode == ir.NoNode {
			continue
		}
		destPort := nextFreePort(occupied, int(rule.ReplaceWith.Meta().Arity))
		if destPort < 0 {
			continue
		}
		occupied[destPort] = true
		g.Connect(srcNode, srcPort, replacementIdx, int32(destPort))
	}

	g.Replace(n, replacementIdx)
	for _, producerIdx := range matchedProducers {
		g.Remove(producerIdx)
	}
	return true
}

func nextFreePort(occupied [4]bool, arity int) int {
	for i := 0; i < arity && i < 4; i++ {
		if !occupied[i] {
			return i
		}
	}
	return -1
}

func userCount(g *ir.Graph, idx int32) int {
	count := 0
	g.WalkUsers(idx, func(int32, int32) { count++ })
	return count
}
