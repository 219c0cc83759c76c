// Package registry owns the set of configured cameras and their capture
// workers.
//
// A [Registry] is created once by the application and injected wherever
// cameras are started, stopped or watched. Each camera id has at most one
// worker at any time; starting and stopping one camera is serialized by a
// per-camera lock, so a slow teardown never blocks another camera.
package registry
