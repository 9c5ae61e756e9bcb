package resource

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

type dropCounter struct {
	drops int
}

func (d *dropCounter) Drop() {
	d.drops++
}

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Insert(1, "test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if _, ok = table.GetTyped(h, 1); !ok {
		t.Fatal("GetTyped with correct type failed")
	}
	if _, ok = table.GetTyped(h, 2); ok {
		t.Fatal("GetTyped with wrong type should fail")
	}

	val, ok = table.Remove(h)
	if !ok || val != "test" {
		t.Fatalf("Remove = %v, %v", val, ok)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
	if _, ok := table.Remove(h); ok {
		t.Fatal("double Remove should fail")
	}
}

func TestTable_ZeroHandleInvalid(t *testing.T) {
	table := NewTable()
	if _, ok := table.Get(0); ok {
		t.Fatal("handle 0 must never resolve")
	}
	if _, ok := table.Get(FromUserData(0)); ok {
		t.Fatal("user data 0 must never resolve")
	}
}

func TestTable_StaleHandleAfterReuse(t *testing.T) {
	table := NewTable()

	first := table.Insert(1, "first")
	table.Remove(first)

	second := table.Insert(1, "second")
	if second == first {
		t.Fatal("reused slot must produce a different handle")
	}
	if second.slot() != first.slot() {
		t.Fatalf("expected slot reuse, got %d and %d", first.slot(), second.slot())
	}
	if _, ok := table.Get(first); ok {
		t.Fatal("stale handle resolved after slot reuse")
	}
	if v, ok := table.Get(second); !ok || v != "second" {
		t.Fatalf("Get(second) = %v, %v", v, ok)
	}
}

func TestTable_Acquire(t *testing.T) {
	table := NewTable()

	h, release := table.Acquire(3, 42)
	if h == 0 {
		t.Fatal("Acquire returned invalid handle")
	}
	if v, ok := table.GetTyped(h, 3); !ok || v != 42 {
		t.Fatalf("GetTyped = %v, %v", v, ok)
	}

	release()
	release()

	if table.Len() != 0 {
		t.Fatalf("Len = %d after release", table.Len())
	}
	if _, ok := table.Get(h); ok {
		t.Fatal("released handle still resolves")
	}
}

func TestTable_AcquireClosed(t *testing.T) {
	table := NewTable()
	table.Close()

	h, release := table.Acquire(1, "x")
	if h != 0 {
		t.Fatalf("closed table handed out %d", h)
	}
	release()
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert(7, "value")
	table.Remove(h)

	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventCreated || obs.events[0].TypeID != 7 {
		t.Errorf("unexpected first event %+v", obs.events[0])
	}
	if obs.events[1].Type != EventDropped || obs.events[1].Handle != h {
		t.Errorf("unexpected second event %+v", obs.events[1])
	}

	table.Unsubscribe(obs)
	table.Insert(7, "again")
	if len(obs.events) != 2 {
		t.Fatal("unsubscribed observer still notified")
	}
}

func TestTable_Dropper(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}

	h := table.Insert(1, d)
	table.Remove(h)
	if d.drops != 1 {
		t.Fatalf("Drop called %d times", d.drops)
	}

	d2 := &dropCounter{}
	table.Insert(1, d2)
	table.Close()
	if d2.drops != 1 {
		t.Fatalf("Close should drop live values, got %d", d2.drops)
	}
}

func TestTyped(t *testing.T) {
	table := NewTable()
	ints := NewTyped[int](table, 1)
	strs := NewTyped[string](table, 2)

	h, release := ints.Acquire(5)
	defer release()

	if v, ok := ints.Resolve(h.UserData()); !ok || v != 5 {
		t.Fatalf("Resolve = %v, %v", v, ok)
	}
	if _, ok := strs.Get(h); ok {
		t.Fatal("typed view resolved a handle of another type")
	}
	big := uint64(1) << 40
	if _, ok := ints.Resolve(uintptr(big)); ok && uintptr(big) != 0 {
		t.Fatal("oversized user data must not resolve")
	}
}

func TestHandleEncoding(t *testing.T) {
	h := makeHandle(0, 0)
	if h == 0 {
		t.Fatal("first slot must not encode to 0")
	}
	h = makeHandle(12, 3)
	if h.slot() != 12 || h.gen() != 3 {
		t.Fatalf("round trip: slot %d gen %d", h.slot(), h.gen())
	}
	h = makeHandle(1, genMask+1)
	if h.gen() != 0 {
		t.Fatalf("generation should wrap, got %d", h.gen())
	}
}
