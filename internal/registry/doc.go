// Package registry owns the fixed pool of backend descriptors and their live
// health and performance state. The pool is built once at startup from
// configuration; descriptors are never added or removed during the process
// lifetime. Each descriptor guards its fields with its own lock so probe
// updates are atomic with respect to concurrent readers.
package registry
