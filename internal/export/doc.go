// Package export renders classified user rosters as CSV and XLSX.
//
// The column set is fixed: identifier, username, full name, then the optional
// email, organisation unit and role columns, and finally the duplicate flag.
// Headers and flag labels follow the configured language.
package export
