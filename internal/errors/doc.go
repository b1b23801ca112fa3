// Package errors provides coded, actionable errors for simgate.
//
// Every error that reaches an operator (bad configuration, an unreadable
// simulation source, a malformed client frame) carries a stable code that
// maps to a short message and a longer explanation.
//
// # Error Categories
//
//   - config: problems reading or validating simgate.json
//   - protocol: malformed envelopes or frames from a client
//   - simulation: failures reported by the simulation service or source fetcher
//   - transport: websocket delivery failures
//   - cli: command line usage errors
//
// # Usage
//
//	err := errors.New("E101").
//	    WithDetail("capacity must be positive in multiuser mode").
//	    WithSuggestion(`Set "capacity": 4 in simgate.json`)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E101: Invalid configuration
//	//
//	//   capacity must be positive in multiuser mode
//	//
//	//   Hint: Set "capacity": 4 in simgate.json
package errors
