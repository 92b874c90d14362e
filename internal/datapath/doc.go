// Package datapath manages switch control-channel connections: it accepts
// TCP connections from switches, runs the Hello/Features handshake, and
// dispatches decoded events to a handler. Each connection has a single
// reader goroutine and a mutex-guarded shared writer.
package datapath
