// Package selector is the backend selection engine: it filters the registry
// down to the healthy subset and applies the active routing policy. The
// policy can be swapped at runtime by the administrative surface; every
// selection uses the policy active at call time.
package selector
