// Package testbed holds end-to-end tests that exercise the bridge the way an
// embedding application would: multiple worker goroutines, rooted values
// crossing threads, several instances in one process, and shutdown under
// load.
package testbed
