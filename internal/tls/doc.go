// Package tls implements certificate management for the control plane's
// admin listener: loading certificates from disk, selecting among them by
// SNI, inspecting and validating them, and watching the backing files so a
// rotated certificate is picked up without a process restart.
package tls
