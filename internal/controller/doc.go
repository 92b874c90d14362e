// Package controller implements the flow-programming state machine. On
// switch connect it installs the table-miss rule; for every new client flow
// to the virtual service address it selects a backend and installs the
// forward/reverse rewrite rules so the switch handles the rest of the flow
// without controller involvement.
package controller
