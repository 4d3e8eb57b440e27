// Package users classifies DHIS2 user rosters into duplicate and unique
// accounts.
//
// Duplicates are detected by exact, case-sensitive equality on the display
// name. Every member of a group sharing a name is flagged, not only the later
// occurrences, and a missing name is its own key that never collides with the
// empty string. Classification never reorders records; it only adds a flag.
//
// The package also resolves organisation unit references against an
// OrgUnitIndex for display and partitions rosters by organisation unit. All
// functions are pure over their inputs so callers can run them once per
// fetched roster and test them without a network.
package users
