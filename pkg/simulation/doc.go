// Package simulation defines the simulation service the session layer drives
// and ships an in-process reference implementation.
//
// The session layer never simulates anything itself. It sequences calls on a
// Service obtained from a Provider and turns the results into notifications.
// In OBSERVE mode every connection shares one Service; in MULTIUSER mode each
// connection gets its own.
//
// Model documents, scripts and simulation configurations are referenced by
// URL and read through a Fetcher, which understands http, https, file and s3
// URLs.
package simulation
