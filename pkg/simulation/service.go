package simulation

import (
	"context"
	"fmt"
	"net/url"

	"github.com/simgate-dev/simgate/internal/errors"
)

var (
	// ErrMalformedURL is returned for references that are not absolute URLs.
	ErrMalformedURL = errors.New("E300")

	// ErrUnsupportedScheme is returned by Fetch for unknown URL schemes.
	ErrUnsupportedScheme = errors.New("E301")

	// ErrForbiddenPath is returned by Fetch for file URLs outside the
	// configured root.
	ErrForbiddenPath = errors.New("E305")

	// ErrNotLoaded is returned by operations that need a loaded simulation.
	ErrNotLoaded = errors.New("E304")
)

// Source is what a simulation is initialized from: either a URL to fetch
// or the model document itself.
type Source struct {
	URL     *url.URL
	Content string
}

// FromURL returns a Source that references a model document.
func FromURL(u *url.URL) Source {
	return Source{URL: u}
}

// FromContent returns a Source carrying the model document inline.
func FromContent(content string) Source {
	return Source{Content: content}
}

// String describes the source for logs.
func (s Source) String() string {
	if s.URL != nil {
		return s.URL.String()
	}
	return fmt.Sprintf("inline(%d bytes)", len(s.Content))
}

// ParseSourceURL parses an absolute URL. Anything without a scheme is
// rejected with ErrMalformedURL.
func ParseSourceURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedURL, raw, err)
	}
	if u.Scheme == "" || (u.Host == "" && u.Path == "" && u.Opaque == "") {
		return nil, fmt.Errorf("%w: %q", ErrMalformedURL, raw)
	}
	return u, nil
}

// Variable is one watchable or forceable simulation variable.
type Variable struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Unit string `json:"unit,omitempty"`
}

// WatchList groups variables whose values are streamed while watching.
type WatchList struct {
	Name      string   `json:"name"`
	Variables []string `json:"variableNames"`
}

// Listener receives asynchronous output from a Service.
type Listener interface {
	// SceneLoaded delivers the scene of a freshly initialized simulation.
	SceneLoaded(scene string)

	// StateUpdated delivers one simulation step.
	StateUpdated(update string)
}

// Service is the simulation capability the session layer drives.
//
// Implementations must be safe for concurrent use: in OBSERVE mode every
// connection reads from the same Service.
type Service interface {
	// Init loads a simulation and reports its scene through l.
	Init(ctx context.Context, src Source, l Listener) error

	Start() error
	Pause() error
	Stop() error
	IsRunning() bool

	// Scripts returns the script URLs the loaded model asks clients to run.
	Scripts() []string

	ListWatchableVariables() ([]Variable, error)
	ListForceableVariables() ([]Variable, error)

	AddWatchLists(lists []WatchList) error
	WatchLists() []WatchList
	StartWatch() error
	StopWatch() error
	ClearWatchLists() error

	SimulatorCapacity() int
	SimulatorName() string

	// SimulationConfig returns the configuration document at u.
	SimulationConfig(ctx context.Context, u *url.URL) (string, error)
}
