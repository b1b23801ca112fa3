package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/simgate-dev/simgate/internal/errors"
)

// DefaultTickInterval is the step period of a running Local simulation.
const DefaultTickInterval = 100 * time.Millisecond

// Model is the document a Local simulation is initialized from.
type Model struct {
	Name      string          `json:"name"`
	Scene     json.RawMessage `json:"scene"`
	Scripts   []string        `json:"scripts,omitempty"`
	Watchable []Variable      `json:"watchable,omitempty"`
	Forceable []Variable      `json:"forceable,omitempty"`
}

// ParseModel decodes and checks a model document.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.New("E303").Wrap(err)
	}
	if len(m.Scene) == 0 || string(m.Scene) == "null" {
		return nil, errors.New("E303").WithDetail("model has no scene")
	}
	for _, s := range m.Scripts {
		if _, err := ParseSourceURL(s); err != nil {
			return nil, errors.New("E303").Wrap(err)
		}
	}
	return &m, nil
}

// Update is one step reported by a running Local simulation.
type Update struct {
	Step  int64              `json:"step"`
	Time  float64            `json:"time"`
	Watch map[string]float64 `json:"watch,omitempty"`
}

// Local is an in-process Service. It loads a Model, and while running emits
// one Update per tick to its Listener. Watched variables follow a sine of
// the step count.
type Local struct {
	name     string
	capacity int
	fetcher  *Fetcher
	interval time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	model      *Model
	listener   Listener
	running    bool
	generation uint64
	step       int64
	watching   bool
	watchLists []WatchList
}

// LocalOption configures a Local.
type LocalOption func(*Local)

// WithTickInterval sets the step period.
func WithTickInterval(d time.Duration) LocalOption {
	return func(l *Local) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocal creates a Local simulation service. A nil fetcher is replaced by
// NewFetcher().
func NewLocal(name string, capacity int, fetcher *Fetcher, opts ...LocalOption) *Local {
	if fetcher == nil {
		fetcher = NewFetcher()
	}
	l := &Local{
		name:     name,
		capacity: capacity,
		fetcher:  fetcher,
		interval: DefaultTickInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "simulation", "simulator", name)
	return l
}

// Init loads the model from src and reports its scene to listener. A running
// simulation is stopped first.
func (l *Local) Init(ctx context.Context, src Source, listener Listener) error {
	data := []byte(src.Content)
	if src.URL != nil {
		var err error
		if data, err = l.fetcher.Fetch(ctx, src.URL); err != nil {
			return err
		}
	}
	model, err := ParseModel(data)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.stopLocked()
	l.model = model
	l.listener = listener
	l.step = 0
	l.watching = false
	l.watchLists = nil
	l.mu.Unlock()

	l.logger.Info("simulation loaded", "model", model.Name, "source", src.String())
	if listener != nil {
		listener.SceneLoaded(string(model.Scene))
	}
	return nil
}

// Start begins emitting updates. Starting a running simulation is a no-op.
func (l *Local) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.model == nil {
		return ErrNotLoaded
	}
	if l.running {
		return nil
	}
	l.running = true
	l.generation++
	go l.run(l.generation)
	return nil
}

// Pause stops emitting updates and keeps the step count.
func (l *Local) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.model == nil {
		return ErrNotLoaded
	}
	l.stopLocked()
	return nil
}

// Stop stops emitting updates and rewinds to step zero.
func (l *Local) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.model == nil {
		return ErrNotLoaded
	}
	l.stopLocked()
	l.step = 0
	return nil
}

func (l *Local) stopLocked() {
	if l.running {
		l.running = false
		l.generation++
	}
}

// IsRunning reports whether updates are being emitted.
func (l *Local) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Local) run(generation uint64) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for range ticker.C {
		update, listener, ok := l.tick(generation)
		if !ok {
			return
		}
		if listener == nil {
			continue
		}
		data, err := json.Marshal(update)
		if err != nil {
			l.logger.Error("encode update failed", "error", err)
			continue
		}
		listener.StateUpdated(string(data))
	}
}

// tick advances one step. It reports false once generation is stale.
func (l *Local) tick(generation uint64) (Update, Listener, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running || l.generation != generation {
		return Update{}, nil, false
	}
	l.step++
	u := Update{
		Step: l.step,
		Time: float64(l.step) * l.interval.Seconds(),
	}
	if l.watching {
		u.Watch = make(map[string]float64)
		for _, wl := range l.watchLists {
			for _, v := range wl.Variables {
				u.Watch[v] = math.Sin(float64(l.step) / 10)
			}
		}
	}
	return u, l.listener, true
}

// Scripts returns the script URLs of the loaded model.
func (l *Local) Scripts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model == nil {
		return nil
	}
	return append([]string(nil), l.model.Scripts...)
}

// ListWatchableVariables returns the model's watchable variables.
func (l *Local) ListWatchableVariables() ([]Variable, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model == nil {
		return nil, ErrNotLoaded
	}
	return append([]Variable{}, l.model.Watchable...), nil
}

// ListForceableVariables returns the model's forceable variables.
func (l *Local) ListForceableVariables() ([]Variable, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model == nil {
		return nil, ErrNotLoaded
	}
	return append([]Variable{}, l.model.Forceable...), nil
}

// AddWatchLists appends watch lists. Every variable must be watchable.
func (l *Local) AddWatchLists(lists []WatchList) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model == nil {
		return ErrNotLoaded
	}

	known := make(map[string]bool, len(l.model.Watchable))
	for _, v := range l.model.Watchable {
		known[v.Name] = true
	}
	for _, wl := range lists {
		for _, name := range wl.Variables {
			if !known[name] {
				return fmt.Errorf("simulation: watch list %q: unknown variable %q", wl.Name, name)
			}
		}
	}
	l.watchLists = append(l.watchLists, lists...)
	return nil
}

// WatchLists returns a copy of the current watch lists.
func (l *Local) WatchLists() []WatchList {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]WatchList{}, l.watchLists...)
}

// StartWatch includes watched variables in updates.
func (l *Local) StartWatch() error {
	return l.setWatching(true)
}

// StopWatch leaves watched variables out of updates.
func (l *Local) StopWatch() error {
	return l.setWatching(false)
}

func (l *Local) setWatching(v bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model == nil {
		return ErrNotLoaded
	}
	l.watching = v
	return nil
}

// ClearWatchLists removes every watch list and stops watching.
func (l *Local) ClearWatchLists() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchLists = nil
	l.watching = false
	return nil
}

// SimulatorCapacity returns how many simulations the simulator runs at once.
func (l *Local) SimulatorCapacity() int {
	return l.capacity
}

// SimulatorName returns the simulator name.
func (l *Local) SimulatorName() string {
	return l.name
}

// SimulationConfig fetches the configuration document at u.
func (l *Local) SimulationConfig(ctx context.Context, u *url.URL) (string, error) {
	data, err := l.fetcher.Fetch(ctx, u)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
