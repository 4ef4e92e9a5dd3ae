package units

import "testing"

func TestHistoryBound(t *testing.T) {
	const n = 5
	h := NewHistory[float64](n)
	for k := 1; k <= 12; k++ {
		h.Push(float64(k))
		want := k
		if want > n {
			want = n
		}
		if h.Len() != want {
			t.Fatalf("after %d pushes Len() = %d, want %d", k, h.Len(), want)
		}
	}
	got := h.Values()
	for i, v := range []float64{8, 9, 10, 11, 12} {
		if got[i] != v {
			t.Errorf("Values()[%d] = %v, want %v", i, got[i], v)
		}
	}
}

func TestHistoryValuesIsCopy(t *testing.T) {
	h := NewHistory[int](3)
	h.Push(1)
	vals := h.Values()
	vals[0] = 99
	if last, _ := h.Last(); last != 1 {
		t.Errorf("Last() = %d after mutating copy, want 1", last)
	}
}

func TestHistoryResize(t *testing.T) {
	h := NewHistory[int](4)
	for i := 0; i < 4; i++ {
		h.Push(i)
	}
	h.Resize(2)
	if h.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", h.Len())
	}
	if v := h.Values(); v[0] != 2 || v[1] != 3 {
		t.Errorf("Values() = %v, want [2 3]", v)
	}
	if _, ok := NewHistory[int](0).Last(); ok {
		t.Error("Last() on empty history reported a value")
	}
}
