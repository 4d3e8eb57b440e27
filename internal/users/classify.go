package users

// nameKey distinguishes a missing name from an empty one.
type nameKey struct {
	name    string
	missing bool
}

func keyOf(r Record) nameKey {
	if r.Name == nil {
		return nameKey{missing: true}
	}
	return nameKey{name: *r.Name}
}

// Classify flags every record whose display name is shared by at least one
// other record. Comparison is exact and case-sensitive. Output order matches
// input order and an empty input yields an empty, non-nil slice.
func Classify(records []Record) []Classified {
	counts := make(map[nameKey]int, len(records))
	for _, r := range records {
		counts[keyOf(r)]++
	}
	out := make([]Classified, len(records))
	for i, r := range records {
		flag := FlagNo
		if counts[keyOf(r)] >= 2 {
			flag = FlagYes
		}
		out[i] = Classified{Record: r, Duplicate: flag}
	}
	return out
}

// FilterDuplicates returns the duplicate subset in original feed order.
// Members of the same group are not moved next to each other.
func FilterDuplicates(classified []Classified) []Classified {
	out := make([]Classified, 0, len(classified))
	for _, c := range classified {
		if c.Duplicate == FlagYes {
			out = append(out, c)
		}
	}
	return out
}

// Records strips classification, returning the underlying records.
func Records(classified []Classified) []Record {
	out := make([]Record, len(classified))
	for i, c := range classified {
		out[i] = c.Record
	}
	return out
}

// Group is the set of classified records sharing one display name.
type Group struct {
	Name    *string      `json:"name" yaml:"name"`
	Members []Classified `json:"members" yaml:"members"`
}

// Groups lists duplicate groups ordered by the first appearance of each name.
func Groups(classified []Classified) []Group {
	index := make(map[nameKey]int)
	var groups []Group
	for _, c := range classified {
		if c.Duplicate != FlagYes {
			continue
		}
		k := keyOf(c.Record)
		pos, ok := index[k]
		if !ok {
			pos = len(groups)
			index[k] = pos
			groups = append(groups, Group{Name: c.Name})
		}
		groups[pos].Members = append(groups[pos].Members, c)
	}
	return groups
}

// Summary counts a classified roster.
type Summary struct {
	Total      int `json:"total" yaml:"total"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Groups     int `json:"groups" yaml:"groups"`
}

// Unique returns the number of records not flagged as duplicates.
func (s Summary) Unique() int { return s.Total - s.Duplicates }

// Summarize counts totals, flagged records and distinct duplicate names.
func Summarize(classified []Classified) Summary {
	s := Summary{Total: len(classified)}
	names := make(map[nameKey]struct{})
	for _, c := range classified {
		if c.Duplicate != FlagYes {
			continue
		}
		s.Duplicates++
		names[keyOf(c.Record)] = struct{}{}
	}
	s.Groups = len(names)
	return s
}
