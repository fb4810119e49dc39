// Package ui implements the evalwatch terminal dashboard on Bubble Tea.
//
// The dashboard never fetches evaluations itself. It reads snapshots from two
// poll subscriptions, one for the namespace's collection and one for the
// selected evaluation, on a one second tick and whenever a subscription
// reports a commit. Moving the selection retargets the detail subscription;
// switching namespace retargets the collection subscription.
//
// # Layout
//
// A header with the namespace, per-state counts and backend health sits above
// a command bar of key hints. Below them the evaluation list and the detail
// pane share the screen; narrow terminals show only the focused pane.
//
// # Files
//
//   - app.go: Model, Update loop, selection and namespace handling, Run
//   - commands.go: messages and the one-off API calls (create, delete, lookups)
//   - list.go: evaluation rows, progress bars, titled boxes
//   - detail.go: status, configuration and results of the selection
//   - create.go: the new-evaluation form with live validation
//   - modal.go: modal interface and the delete confirmation
//   - header.go, help.go, keys.go, theme.go: chrome, bindings and palettes
package ui
