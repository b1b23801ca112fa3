package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Configuration Errors (E100-E199)
	// ============================================

	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "simgate looks for simgate.json in the working directory unless --config is given.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "simgate.json was read but one of its values is out of range.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Configuration parse error",
		Detail:   "simgate.json is not valid JSON or a field has the wrong type.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Unknown behavior mode",
		Detail:   `The server behavior mode must be "observe" or "multiuser".`,
	},

	// ============================================
	// Protocol Errors (E200-E299)
	// ============================================

	"E200": {
		Category: CategoryProtocol,
		Message:  "Malformed envelope",
		Detail:   "The client sent a frame that is not a JSON object with a type field.",
	},
	"E201": {
		Category: CategoryProtocol,
		Message:  "Compression error",
		Detail:   "An LZ4 frame could not be compressed or decompressed.",
	},

	// ============================================
	// Simulation Errors (E300-E399)
	// ============================================

	"E300": {
		Category: CategorySimulation,
		Message:  "Malformed source URL",
		Detail:   "A simulation, script or configuration reference is not an absolute URL.",
	},
	"E301": {
		Category: CategorySimulation,
		Message:  "Unsupported source scheme",
		Detail:   "Sources can be read from http, https and s3 URLs, and from file URLs when sources.allowFile is set.",
	},
	"E302": {
		Category: CategorySimulation,
		Message:  "Source fetch failed",
		Detail:   "The referenced document could not be read.",
	},
	"E303": {
		Category: CategorySimulation,
		Message:  "Simulation initialization failed",
		Detail:   "The simulation service rejected the model document.",
	},
	"E304": {
		Category: CategorySimulation,
		Message:  "Simulation not loaded",
		Detail:   "The operation requires a loaded simulation.",
	},
	"E305": {
		Category: CategorySimulation,
		Message:  "Source path not allowed",
		Detail:   "File sources must resolve inside sources.fileRoot.",
	},

	// ============================================
	// Transport Errors (E400-E499)
	// ============================================

	"E400": {
		Category: CategoryTransport,
		Message:  "Websocket write failed",
		Detail:   "A frame could not be delivered to the client; the connection is presumed dead.",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
