package changes_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"srmsync/internal/changes"
	"srmsync/internal/library"
	"srmsync/internal/logging"
)

type memCache struct {
	entries map[string]string
	failPut map[string]bool
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]string{}, failPut: map[string]bool{}}
}

func (m *memCache) Get(key string) (string, bool, error) {
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memCache) Put(key, fp string) error {
	m.puts++
	if m.failPut[key] {
		return errors.New("disk full")
	}
	m.entries[key] = fp
	return nil
}

func (m *memCache) Delete(key string) error {
	delete(m.entries, key)
	return nil
}

func group(plugin uuid.UUID, ids ...uuid.UUID) library.Group {
	g := library.Group{Library: library.Lookup(plugin)}
	for _, id := range ids {
		g.Games = append(g.Games, library.Game{ID: id, PluginID: plugin})
	}
	return g
}

func TestFingerprintIsOrderIndependent(t *testing.T) {
	a := changes.Fingerprint([]string{"c", "a", "b"})
	b := changes.Fingerprint([]string{"b", "c", "a"})
	if a != b || a != "a,b,c" {
		t.Fatalf("fingerprints differ: %q vs %q", a, b)
	}
	if changes.Fingerprint(nil) != "" {
		t.Fatal("empty set must fingerprint to empty string")
	}
}

func TestComputeChangesAbsentCacheMeansChanged(t *testing.T) {
	cache := newMemCache()
	detector := changes.NewDetector(cache, logging.NewNop())
	plugin := uuid.New()
	g1, g2, g3 := uuid.New(), uuid.New(), uuid.New()

	result, err := detector.ComputeChanges([]library.Group{group(plugin, g1, g2, g3)})
	if err != nil {
		t.Fatalf("ComputeChanges: %v", err)
	}
	if len(result) != 1 || !result[0].Changed || result[0].HadPrevious {
		t.Fatalf("unexpected result %+v", result)
	}
	if cache.puts != 0 {
		t.Fatal("ComputeChanges must not write the cache")
	}

	if err := detector.Commit(changes.Changed(result)); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	want := changes.Fingerprint([]string{g1.String(), g2.String(), g3.String()})
	if cache.entries[plugin.String()] != want {
		t.Fatalf("cached = %q, want %q", cache.entries[plugin.String()], want)
	}

	again, err := detector.ComputeChanges([]library.Group{group(plugin, g3, g1, g2)})
	if err != nil {
		t.Fatalf("ComputeChanges: %v", err)
	}
	if len(changes.Changed(again)) != 0 {
		t.Fatal("reordered identical set must not count as changed")
	}
}

func TestComputeChangesDetectsAddition(t *testing.T) {
	cache := newMemCache()
	detector := changes.NewDetector(cache, logging.NewNop())
	plugin := uuid.New()
	g1 := uuid.New()
	cache.entries[plugin.String()] = changes.Fingerprint([]string{g1.String()})

	result, err := detector.ComputeChanges([]library.Group{group(plugin, g1, uuid.New())})
	if err != nil {
		t.Fatalf("ComputeChanges: %v", err)
	}
	if !result[0].Changed || !result[0].HadPrevious || result[0].Previous != g1.String() {
		t.Fatalf("unexpected change %+v", result[0])
	}
}

func TestCommitRollsBackOnFailure(t *testing.T) {
	cache := newMemCache()
	detector := changes.NewDetector(cache, logging.NewNop())
	pa, pb, pc := uuid.New(), uuid.New(), uuid.New()
	cache.entries[pa.String()] = "old-a"
	cache.failPut[pc.String()] = true

	result, err := detector.ComputeChanges([]library.Group{
		group(pa, uuid.New()),
		group(pb, uuid.New()),
		group(pc, uuid.New()),
	})
	if err != nil {
		t.Fatalf("ComputeChanges: %v", err)
	}
	if err := detector.Commit(changes.Changed(result)); err == nil {
		t.Fatal("expected commit error")
	}
	if cache.entries[pa.String()] != "old-a" {
		t.Fatalf("expected previous value restored, got %q", cache.entries[pa.String()])
	}
	if _, ok := cache.entries[pb.String()]; ok {
		t.Fatal("expected first-sync entry removed on rollback")
	}
}
