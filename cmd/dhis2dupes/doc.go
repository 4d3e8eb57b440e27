// Package main hosts the dhis2dupes CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, builds the DHIS2 client and
// hands work to the internal packages: report for classification, export for
// files, history for run records and server for the download service.
//
// Keep this package lean: new behaviour belongs in an internal package first,
// surfaced here through a command or flag.
package main
