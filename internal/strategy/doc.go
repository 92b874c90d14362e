// Package strategy defines the backend selection interface and implements
// the four routing policies:
//
//   - Round Robin: cycles through healthy backends in registry order
//   - Least Connections: routes to the backend with the fewest active connections
//   - Latency Weighted: routes to the backend with the lowest probe latency
//   - Weighted Round Robin: routes to the backend with the most CPU/memory headroom
//
// Strategies operate on the healthy snapshot handed to them by the selector;
// they never consult health state themselves.
package strategy
