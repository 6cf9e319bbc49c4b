// Package cleanup replaces the reference implementation's global mutable
// "files to delete on fatal exit" pointers (spec.md §9) with a scoped
// registry: every output file a command creates is wrapped in a Handle
// whose Abort unlinks the file. A command commits its handles on the
// success path; any error path that simply returns leaves them uncommitted,
// and a deferred Registry.Close unwinds them.
package cleanup

import "os"

// Handle tracks a single file that should be removed unless committed.
type Handle struct {
	path      string
	committed bool
}

// Path returns the file path this handle guards.
func (h *Handle) Path() string {
	return h.path
}

// Commit marks the file as intentionally kept; Abort becomes a no-op.
func (h *Handle) Commit() {
	h.committed = true
}

// Registry collects the handles created during a single command
// invocation. Defer Close() immediately after creating it; on the success
// path call Commit() on each handle that should survive before returning.
type Registry struct {
	handles []*Handle
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Track registers path as an in-progress output file and returns a handle
// for it. The file does not need to exist yet.
func (r *Registry) Track(path string) *Handle {
	h := &Handle{path: path}
	r.handles = append(r.handles, h)
	return h
}

// Close unlinks every handle that was not committed, in reverse
// registration order. It never returns an error: a failed removal is
// silently ignored, so it cannot mask the original fatal error that
// triggered the unwind.
func (r *Registry) Close() {
	for i := len(r.handles) - 1; i >= 0; i-- {
		h := r.handles[i]
		if h.committed {
			continue
		}
		os.Remove(h.path)
	}
}
