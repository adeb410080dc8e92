package resolve

// scope tracks the column names visible at a point in the pipeline, each
// tagged with the relation it came from. The relation tag is empty for
// columns produced by the pipeline itself (projections, derives,
// aggregates) and set to the table, alias, or binding name for columns
// still owned by a source relation.
type scope struct {
	entries []scopeEntry
}

type scopeEntry struct {
	name string
	rel  string
}

func newScope() *scope {
	return &scope{}
}

func (s *scope) clone() *scope {
	return &scope{entries: append([]scopeEntry{}, s.entries...)}
}

func (s *scope) add(name, rel string) {
	s.entries = append(s.entries, scopeEntry{name: name, rel: rel})
}

// lookup returns the relation tags of every entry with the given name.
// More than one result means the bare name is ambiguous.
func (s *scope) lookup(name string) []string {
	var rels []string
	for _, e := range s.entries {
		if e.name == name {
			rels = append(rels, e.rel)
		}
	}
	return rels
}

func (s *scope) has(name string) bool {
	return len(s.lookup(name)) > 0
}

func (s *scope) hasQualified(rel, name string) bool {
	for _, e := range s.entries {
		if e.name == name && e.rel == rel {
			return true
		}
	}
	return false
}

// names lists everything in scope, qualified where the relation is known,
// for use in diagnostics.
func (s *scope) names() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		if e.rel != "" {
			out[i] = e.rel + "." + e.name
		} else {
			out[i] = e.name
		}
	}
	return out
}
