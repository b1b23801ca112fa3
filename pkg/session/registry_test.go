package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
)

type nopSink struct{}

func (nopSink) Send([]byte) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRegistry(mode BehaviorMode, capacity int) *Registry {
	return NewRegistry(NewServerConfig(mode, capacity, "testsim"), testLogger())
}

func TestRegistryAddDuplicate(t *testing.T) {
	r := newTestRegistry(Observe, 1)

	if err := r.Add(NewConnection("a", nopSink{})); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	err := r.Add(NewConnection("a", nopSink{}))
	if !errors.Is(err, ErrDuplicateConnection) {
		t.Errorf("second Add() error = %v, want ErrDuplicateConnection", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := newTestRegistry(Observe, 1)
	_ = r.Add(NewConnection("a", nopSink{}))

	if !r.Remove("a") {
		t.Error("first Remove() should report removal")
	}
	if r.Remove("a") {
		t.Error("second Remove() should be a no-op")
	}
	if r.Remove("never-existed") {
		t.Error("Remove() of unknown id should be a no-op")
	}
}

func TestRegistryListIsSnapshot(t *testing.T) {
	r := newTestRegistry(Observe, 1)
	_ = r.Add(NewConnection("a", nopSink{}))
	_ = r.Add(NewConnection("b", nopSink{}))

	snapshot := r.List()
	_ = r.Add(NewConnection("c", nopSink{}))
	r.Remove("a")

	if len(snapshot) != 2 {
		t.Errorf("snapshot length = %d, want 2", len(snapshot))
	}
	if _, ok := r.Get("c"); !ok {
		t.Error("Get(c) should find the new connection")
	}
	if _, ok := r.Get("a"); ok {
		t.Error("Get(a) should fail after Remove")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := newTestRegistry(Multiuser, 4)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			if _, err := r.Connect(NewConnection(id, nopSink{})); err != nil {
				t.Errorf("Connect(%s) error = %v", id, err)
			}
			_ = r.List()
			_ = r.Stats()
			if i%2 == 0 {
				r.Disconnect(id)
			}
		}(i)
	}
	wg.Wait()

	if r.Len() != 25 {
		t.Errorf("Len() = %d, want 25", r.Len())
	}
}
