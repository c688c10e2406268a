// Package tui provides the live view behind `researchctl status --watch`.
//
// The view is a Bubble Tea program around a single Model. It re-queries the
// container state every interval through a SnapshotFunc and renders it with
// the same table as the plain status command, so both outputs stay in step.
//
// # Keys
//
//   - r: refresh now (ignored while a query is in flight)
//   - c: copy the API URL to the clipboard
//   - h: toggle help
//   - q, ctrl+c: quit
//
// The view is read-only: nothing in this package starts or stops containers.
//
// Styling lives in the design subpackage, shared with the plain status output.
package tui
