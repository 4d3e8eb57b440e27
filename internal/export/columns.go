package export

import (
	"strings"

	"dhis2dupes/internal/users"
)

// Options selects the optional columns and encoding details.
type Options struct {
	Language        string
	ByteOrderMark   bool
	IncludeEmail    bool
	IncludeOrgUnits bool
	IncludeRoles    bool
}

// Header returns the column headers for opts.
func Header(opts Options) []string {
	l := LabelsFor(opts.Language)
	header := []string{l.ID, l.Username, l.Name}
	if opts.IncludeEmail {
		header = append(header, l.Email)
	}
	if opts.IncludeOrgUnits {
		header = append(header, l.OrgUnits)
	}
	if opts.IncludeRoles {
		header = append(header, l.Roles)
	}
	return append(header, l.Duplicate)
}

// Row renders one classified record. A missing name is an empty cell.
func Row(c users.Classified, opts Options) []string {
	l := LabelsFor(opts.Language)
	return row(c, opts, l)
}

func row(c users.Classified, opts Options, l Labels) []string {
	name := ""
	if c.Name != nil {
		name = *c.Name
	}
	out := []string{c.ID, c.Username, name}
	if opts.IncludeEmail {
		out = append(out, c.Email)
	}
	if opts.IncludeOrgUnits {
		out = append(out, orgUnitCell(c))
	}
	if opts.IncludeRoles {
		out = append(out, strings.Join(c.Roles, ", "))
	}
	return append(out, l.Flag(c.Duplicate))
}

// orgUnitCell prefers the annotated label and otherwise falls back to the
// names embedded in the user payload.
func orgUnitCell(c users.Classified) string {
	if c.OrgUnitLabel != "" {
		return c.OrgUnitLabel
	}
	index := users.EmbeddedIndex([]users.Record{c.Record})
	return users.JoinOrgUnitLabels(users.EnrichOrganisationUnits(c.Record, index))
}
