package cache

import "testing"

type fakeBitmap struct {
	id     string
	closed bool
	w, h   int
}

func (f *fakeBitmap) Close()      { f.closed = true }
func (f *fakeBitmap) Width() int  { return f.w }
func (f *fakeBitmap) Height() int { return f.h }

func key(page, x, y, scale int) Key {
	return Key{DocumentID: "doc1", Page: page, TileX: x, TileY: y, Scale: scale}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := New(Config{MaxItems: 10})
	bmp := &fakeBitmap{id: "a"}
	c.Put(key(1, 0, 0, 4), bmp, 1)

	got, ok := c.Get(key(1, 0, 0, 4))
	if !ok || got != bmp {
		t.Fatalf("expected to get back bmp, got %v ok=%v", got, ok)
	}
}

func TestGetMissReturnsFalse(t *testing.T) {
	c := New(DefaultConfig())
	_, ok := c.Get(key(1, 0, 0, 4))
	if ok {
		t.Fatal("expected miss")
	}
}

func TestCacheKeyIdentityMatchesEntry(t *testing.T) {
	c := New(DefaultConfig())
	k := key(3, 5, 7, 8)
	c.Put(k, &fakeBitmap{}, 1)
	if got, ok := c.Get(k); !ok || got == nil {
		t.Fatal("expected hit under the exact key used to store")
	}
	// A different key must miss — cache keys fully determine identity
	// (spec §8 invariant 5).
	other := key(3, 5, 7, 4)
	if _, ok := c.Get(other); ok {
		t.Fatal("expected miss for a tile differing only in scale")
	}
}

func TestGetBestAvailableBitmapExactHit(t *testing.T) {
	c := New(DefaultConfig())
	bmp := &fakeBitmap{}
	c.Put(key(1, 0, 0, 8), bmp, 1)

	fb, ok := c.GetBestAvailableBitmap(key(1, 0, 0, 8), 8)
	if !ok || fb.CSSStretch != 1.0 || fb.Bitmap != bmp {
		t.Fatalf("expected exact fallback, got %+v", fb)
	}
}

func TestGetBestAvailableBitmapFallsBackToOtherScale(t *testing.T) {
	c := New(DefaultConfig())
	bmp := &fakeBitmap{}
	c.Put(key(1, 0, 0, 4), bmp, 1)

	fb, ok := c.GetBestAvailableBitmap(key(1, 0, 0, 16), 16)
	if !ok {
		t.Fatal("expected a fallback bitmap at a different scale")
	}
	if fb.Tile != key(1, 0, 0, 4) {
		t.Fatalf("fallback must report the cached tile's own coordinates, got %+v", fb.Tile)
	}
	if fb.CSSStretch != 4.0 {
		t.Fatalf("expected cssStretch 16/4=4.0, got %v", fb.CSSStretch)
	}
}

func TestGetBestAvailableBitmapNoneCached(t *testing.T) {
	c := New(DefaultConfig())
	_, ok := c.GetBestAvailableBitmap(key(1, 0, 0, 8), 8)
	if ok {
		t.Fatal("expected no fallback when nothing is cached for that tile")
	}
}

func TestEvictionClosesBitmapAndRemoves(t *testing.T) {
	c := New(Config{MaxItems: 1})
	first := &fakeBitmap{id: "first"}
	second := &fakeBitmap{id: "second"}

	c.Put(key(1, 0, 0, 4), first, 1)
	c.Put(key(1, 1, 0, 4), second, 1)

	if !first.closed {
		t.Fatal("expected first bitmap to be evicted and closed")
	}
	if c.Len() != 1 {
		t.Fatalf("expected cache size 1, got %d", c.Len())
	}
	if _, ok := c.Get(key(1, 0, 0, 4)); ok {
		t.Fatal("expected evicted key to miss")
	}
}

func TestEvictionPrefersLowestPriority(t *testing.T) {
	c := New(Config{MaxItems: 2})
	c.SetPriorityFunction(func(k Key, _ Entry, _ PriorityContext) int {
		if k.Page == 1 {
			return 0 // keep
		}
		return 3 // evict first
	})

	low := &fakeBitmap{id: "low-priority"}
	c.Put(key(2, 0, 0, 4), low, 1) // priority 3
	c.Put(key(1, 0, 0, 4), &fakeBitmap{}, 1) // priority 0
	c.Put(key(1, 1, 0, 4), &fakeBitmap{}, 1) // priority 0, triggers eviction

	if !low.closed {
		t.Fatal("expected the low-priority (zone 3) entry to be evicted despite being older only by one insert")
	}
}

func TestEvictExplicitTargetSize(t *testing.T) {
	c := New(Config{MaxItems: 100})
	for i := 0; i < 5; i++ {
		c.Put(key(1, i, 0, 4), &fakeBitmap{}, 1)
	}
	c.Evict(2, PriorityContext{Kind: "idle"})
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries after forced eviction, got %d", c.Len())
	}
}

func TestClearClosesAllBitmaps(t *testing.T) {
	c := New(DefaultConfig())
	bmps := []*fakeBitmap{{}, {}, {}}
	for i, b := range bmps {
		c.Put(key(1, i, 0, 4), b, 1)
	}
	c.Clear()
	for _, b := range bmps {
		if !b.closed {
			t.Fatal("expected all bitmaps closed after Clear")
		}
	}
	if c.Len() != 0 {
		t.Fatal("expected empty cache after Clear")
	}
}

func TestDefaultPriorityFuncPanZones(t *testing.T) {
	cases := []struct {
		dist int
		want int
	}{{0, 0}, {1, 1}, {2, 1}, {3, 3}}
	for _, c := range cases {
		got := DefaultPriorityFunc(Key{}, Entry{}, PriorityContext{Kind: "pan", PageDistance: c.dist})
		if got != c.want {
			t.Errorf("pan dist=%d: got zone %d want %d", c.dist, got, c.want)
		}
	}
}

func TestDefaultPriorityFuncZoomInRadial(t *testing.T) {
	cases := []struct {
		dist float64
		want int
	}{{0.5, 0}, {1.5, 1}, {2.5, 2}, {10, 3}}
	for _, c := range cases {
		got := DefaultPriorityFunc(Key{}, Entry{}, PriorityContext{Kind: "zoom-in", RadialDistance: c.dist})
		if got != c.want {
			t.Errorf("zoom-in radial=%v: got zone %d want %d", c.dist, got, c.want)
		}
	}
}
