package rel

import "fmt"

// chainFlags records which cardinality- or order-sensitive kinds occur in
// the fused chain ending at a node. Boundary decisions look at the whole
// chain, not just the immediate input: an aggregate reached through a
// filter still cannot share a SELECT with a join.
type chainFlags struct {
	agg  bool
	sort bool
	take bool
}

// Partition decides which nodes become named CTEs. Two forces drive it:
// sharing (a node with more than one consumer must be emitted once) and
// SQL's clause layering (some stage orders cannot live in one SELECT).
//
// The boundary rules, per fused chain content:
//
//   - A chain holding an Aggregate fuses with Filter (HAVING), Project,
//     Sort and Take. A second Aggregate, a Join or a Union cuts.
//   - A chain holding a Take only fuses with Project. Filtering, sorting
//     or re-limiting a limited relation changes meaning if folded into
//     the same SELECT, so those cut.
//   - A chain holding a Sort fuses with row-preserving stages but cuts
//     before Aggregate, Join and Union, where the ordering would
//     silently disappear.
//   - Union cuts before everything: SQL attaches trailing clauses to the
//     last arm of a set operation, not to its result. For the same
//     reason a union arm holding Sort, Take or Aggregate is
//     materialized rather than inlined, so its ORDER BY and LIMIT stay
//     scoped to the arm.
//
// Nodes are stored in dependency order (inputs before consumers), so one
// forward pass can carry the chain flags. Unnamed boundary nodes get
// synthesized names (table_0, table_1, ...) in arena order, which keeps
// output deterministic.
func Partition(t *Tree) {
	refs := make([]int, len(t.Nodes))
	refs[t.Root]++
	for _, n := range t.Nodes {
		if n.Input != None {
			refs[n.Input]++
		}
		if n.Right != None {
			refs[n.Right]++
		}
	}

	chains := make([]chainFlags, len(t.Nodes))
	for id := range t.Nodes {
		n := t.Node(NodeID(id))
		if n.Kind == KindScan {
			// Scans are table references; repeating FROM t is fine.
			continue
		}
		if refs[id] > 1 {
			n.Materialize = true
		}
		if n.Input != None {
			in := t.Node(n.Input)
			if in.Kind != KindScan && cutsBoundary(chains[n.Input], in.Kind, n.Kind) {
				in.Materialize = true
			}
		}
		if n.Right != None {
			r := t.Node(n.Right)
			// A join's right side must be a named relation.
			if n.Kind == KindJoin && r.Kind != KindScan {
				r.Materialize = true
			}
			rc := chains[n.Right]
			if n.Kind == KindUnion && (rc.agg || rc.sort || rc.take) {
				r.Materialize = true
			}
		}

		var f chainFlags
		if n.Input != None {
			if in := t.Node(n.Input); in.Kind != KindScan && !in.Materialize {
				f = chains[n.Input]
			}
		}
		switch n.Kind {
		case KindAggregate:
			f.agg = true
		case KindSort:
			f.sort = true
		case KindTake:
			f.take = true
		case KindUnion:
			f = chainFlags{}
		}
		if n.Materialize {
			// Consumers read this node by name; their chains start fresh.
			f = chainFlags{}
		}
		chains[id] = f
	}

	next := 0
	for id := range t.Nodes {
		n := t.Node(NodeID(id))
		if n.Materialize && n.Name == "" {
			n.Name = fmt.Sprintf("table_%d", next)
			next++
		}
	}
}

func cutsBoundary(in chainFlags, input, stage Kind) bool {
	if input == KindUnion {
		return true
	}
	if in.take && stage != KindProject {
		return true
	}
	if in.agg || in.sort {
		switch stage {
		case KindAggregate, KindJoin, KindUnion:
			return true
		}
	}
	return false
}
