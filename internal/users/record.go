package users

// OrgUnitRef references an organisation unit attached to a user account.
type OrgUnitRef struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Record is a single user account as returned by DHIS2.
//
// Name is nil when the server omitted the field or sent null.
type Record struct {
	ID                string       `json:"id" yaml:"id"`
	Username          string       `json:"username" yaml:"username"`
	Name              *string      `json:"name" yaml:"name"`
	Email             string       `json:"email,omitempty" yaml:"email,omitempty"`
	OrganisationUnits []OrgUnitRef `json:"organisationUnits,omitempty" yaml:"organisationUnits,omitempty"`
	Roles             []string     `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// DisplayName returns the name or an empty string when it is missing.
func (r Record) DisplayName() string {
	if r.Name == nil {
		return ""
	}
	return *r.Name
}

// HasOrgUnit reports whether the record references the given unit id.
func (r Record) HasOrgUnit(unitID string) bool {
	for _, ou := range r.OrganisationUnits {
		if ou.ID == unitID {
			return true
		}
	}
	return false
}

// Flag is the duplicate marker attached to a classified record.
type Flag string

const (
	FlagYes Flag = "Yes"
	FlagNo  Flag = "No"
)

// Bool reports whether the flag marks a duplicate.
func (f Flag) Bool() bool { return f == FlagYes }

// Classified is a Record annotated with its duplicate flag and, optionally,
// a display label for its organisation units.
type Classified struct {
	Record       `yaml:",inline"`
	Duplicate    Flag   `json:"isDuplicate" yaml:"isDuplicate"`
	OrgUnitLabel string `json:"orgUnitLabel,omitempty" yaml:"orgUnitLabel,omitempty"`
}

// StringPtr returns a pointer to s. Handy for building records in callers and tests.
func StringPtr(s string) *string { return &s }
