package users

import "strings"

const (
	labelSeparator = ", "
	pairSeparator  = "; "
)

// OrgUnitIndex maps organisation unit ids to names. It is built once per run
// and never mutated afterwards; the zero value is an empty index.
type OrgUnitIndex struct {
	names map[string]string
	order []string
}

// NewOrgUnitIndex builds an index from fetched units. Later entries with the
// same id replace the name but keep the first position.
func NewOrgUnitIndex(units []OrgUnitRef) OrgUnitIndex {
	idx := OrgUnitIndex{
		names: make(map[string]string, len(units)),
		order: make([]string, 0, len(units)),
	}
	for _, u := range units {
		if _, seen := idx.names[u.ID]; !seen {
			idx.order = append(idx.order, u.ID)
		}
		idx.names[u.ID] = u.Name
	}
	return idx
}

// Lookup returns the name registered for id.
func (i OrgUnitIndex) Lookup(id string) (string, bool) {
	name, ok := i.names[id]
	return name, ok
}

// Resolve returns the name for id, or id itself when unknown.
func (i OrgUnitIndex) Resolve(id string) string {
	if name, ok := i.names[id]; ok {
		return name
	}
	return id
}

// Len returns the number of indexed units.
func (i OrgUnitIndex) Len() int { return len(i.names) }

// Units returns the indexed units in insertion order.
func (i OrgUnitIndex) Units() []OrgUnitRef {
	out := make([]OrgUnitRef, 0, len(i.order))
	for _, id := range i.order {
		out = append(out, OrgUnitRef{ID: id, Name: i.names[id]})
	}
	return out
}

// EnrichOrganisationUnits maps each of the record's organisation unit
// references through the index, keeping the record's order. Unresolved ids
// are returned verbatim.
func EnrichOrganisationUnits(record Record, index OrgUnitIndex) []string {
	out := make([]string, 0, len(record.OrganisationUnits))
	for _, ou := range record.OrganisationUnits {
		out = append(out, index.Resolve(ou.ID))
	}
	return out
}

// JoinOrgUnitLabels joins resolved names for display.
func JoinOrgUnitLabels(labels []string) string {
	return strings.Join(labels, labelSeparator)
}

// JoinOrgUnitPairs renders "name (id)" for each reference, separated by
// semicolons. Unresolved ids render as the bare id.
func JoinOrgUnitPairs(record Record, index OrgUnitIndex) string {
	parts := make([]string, 0, len(record.OrganisationUnits))
	for _, ou := range record.OrganisationUnits {
		name, ok := index.Lookup(ou.ID)
		if !ok {
			parts = append(parts, ou.ID)
			continue
		}
		parts = append(parts, name+" ("+ou.ID+")")
	}
	return strings.Join(parts, pairSeparator)
}

// EmbeddedIndex builds an index from the organisation unit names already
// embedded in user payloads. Used when a separate unit fetch is skipped.
func EmbeddedIndex(records []Record) OrgUnitIndex {
	var units []OrgUnitRef
	for _, r := range records {
		for _, ou := range r.OrganisationUnits {
			if ou.Name == "" {
				continue
			}
			units = append(units, ou)
		}
	}
	return NewOrgUnitIndex(units)
}

// FilterByOrganisationUnit returns, in original order, the records whose
// organisation unit references contain unitID.
func FilterByOrganisationUnit(records []Record, unitID string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.HasOrgUnit(unitID) {
			out = append(out, r)
		}
	}
	return out
}

// FilterClassifiedByOrganisationUnit is FilterByOrganisationUnit for records
// that were already classified. Flags are kept as computed on the full roster.
func FilterClassifiedByOrganisationUnit(classified []Classified, unitID string) []Classified {
	out := make([]Classified, 0, len(classified))
	for _, c := range classified {
		if c.HasOrgUnit(unitID) {
			out = append(out, c)
		}
	}
	return out
}

// Annotate sets OrgUnitLabel on every classified record. With withIDs the
// label lists "name (id)" pairs; otherwise resolved names only.
func Annotate(classified []Classified, index OrgUnitIndex, withIDs bool) {
	for i := range classified {
		if withIDs {
			classified[i].OrgUnitLabel = JoinOrgUnitPairs(classified[i].Record, index)
			continue
		}
		classified[i].OrgUnitLabel = JoinOrgUnitLabels(EnrichOrganisationUnits(classified[i].Record, index))
	}
}
