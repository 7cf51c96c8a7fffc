// Package diagnostics captures and stores crash reports.
//
// Everything that can allocate or block is done ahead of time: metadata is
// collected at install, the builder owns its report slot and dump buffer, and
// the persister opens its pending file and encode buffer in Prepare. On the
// crash path Build fills fixed storage and Write encodes, writes, syncs and
// renames.
//
// The readers (ListReports, LoadReport, LoadLatestReport) serve the next
// process start and the companion tooling.
package diagnostics
