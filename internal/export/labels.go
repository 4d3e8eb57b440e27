package export

import (
	"golang.org/x/text/language"

	"dhis2dupes/internal/users"
)

// Labels holds the localised column headers and flag values.
type Labels struct {
	ID        string
	Username  string
	Name      string
	Email     string
	OrgUnits  string
	Roles     string
	Duplicate string
	Yes       string
	No        string

	// Sheet names for XLSX output.
	UsersSheet      string
	DuplicatesSheet string
}

var supported = []language.Tag{language.English, language.French}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]Labels{
	language.English: {
		ID:              "ID",
		Username:        "Username",
		Name:            "Name",
		Email:           "Email",
		OrgUnits:        "Organisation units",
		Roles:           "Roles",
		Duplicate:       "Duplicate",
		Yes:             "Yes",
		No:              "No",
		UsersSheet:      "Users",
		DuplicatesSheet: "Duplicates",
	},
	language.French: {
		ID:              "Identifiant",
		Username:        "Nom d'utilisateur",
		Name:            "Nom",
		Email:           "Courriel",
		OrgUnits:        "Organisation",
		Roles:           "Rôles",
		Duplicate:       "Doublon",
		Yes:             "Oui",
		No:              "Non",
		UsersSheet:      "Utilisateurs",
		DuplicatesSheet: "Doublons",
	},
}

// LabelsFor returns the labels for a BCP 47 language tag or Accept-Language
// value. Unsupported or malformed values fall back to English.
func LabelsFor(lang string) Labels {
	tags, _, err := language.ParseAcceptLanguage(lang)
	if err != nil || len(tags) == 0 {
		return catalog[language.English]
	}
	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return catalog[language.English]
	}
	return catalog[supported[index]]
}

// Flag renders a duplicate flag in the label language.
func (l Labels) Flag(f users.Flag) string {
	if f.Bool() {
		return l.Yes
	}
	return l.No
}
