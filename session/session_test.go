package session

import "testing"

func TestNextIsMonotonic(t *testing.T) {
	m := New()
	a := m.Next()
	b := m.Next()
	if b <= a {
		t.Fatalf("expected monotonic increase, got %v then %v", a, b)
	}
}

func TestNewSessionIsLive(t *testing.T) {
	m := New()
	id := m.Next()
	if !m.IsLive(id) {
		t.Fatal("expected freshly issued session to be live")
	}
}

func TestAbortRetiresOne(t *testing.T) {
	m := New()
	a := m.Next()
	b := m.Next()
	m.Abort(a)
	if m.IsLive(a) {
		t.Fatal("expected aborted session to be dead")
	}
	if !m.IsLive(b) {
		t.Fatal("expected other session to remain live")
	}
}

func TestAbortStaleKeepsOnlyRecent(t *testing.T) {
	m := New()
	ids := make([]ID, 5)
	for i := range ids {
		ids[i] = m.Next()
	}
	m.AbortStale(2)
	for i, id := range ids {
		want := i >= 3
		if m.IsLive(id) != want {
			t.Errorf("session %d: IsLive=%v, want %v", i, m.IsLive(id), want)
		}
	}
	if m.Count() != 2 {
		t.Fatalf("expected 2 live sessions, got %d", m.Count())
	}
}

func TestAbortStaleKeepRecentGreaterThanCountIsNoop(t *testing.T) {
	m := New()
	m.Next()
	m.Next()
	m.AbortStale(10)
	if m.Count() != 2 {
		t.Fatalf("expected no sessions aborted, got count %d", m.Count())
	}
}

func TestAbortAllClearsEverything(t *testing.T) {
	m := New()
	m.Next()
	m.Next()
	m.AbortAll()
	if m.Count() != 0 {
		t.Fatalf("expected 0 live sessions, got %d", m.Count())
	}
}
