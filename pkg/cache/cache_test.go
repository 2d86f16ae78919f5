package cache

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingRenderer struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (r *countingRenderer) RenderImage(page int, zoom float64, rotation int) (*image.RGBA, error) {
	r.calls.Add(1)
	time.Sleep(r.delay)
	if r.err != nil {
		return nil, r.err
	}
	return image.NewRGBA(image.Rect(0, 0, page+1, 1)), nil
}

func TestPageCacheHit(t *testing.T) {
	r := &countingRenderer{}
	c, err := New(r, 2)
	if err != nil {
		t.Fatal(err)
	}

	first, err := c.Get(0, 1, 0)
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	second, _ := c.Get(0, 1, 0)
	if first != second {
		t.Error("Expected the cached image")
	}
	if r.calls.Load() != 1 {
		t.Errorf("Expected 1 render, got %d", r.calls.Load())
	}

	// different zoom or rotation is a different entry
	c.Get(0, 2, 0)
	c.Get(0, 1, 90)
	if r.calls.Load() != 3 {
		t.Errorf("Expected 3 renders, got %d", r.calls.Load())
	}
	if c.Len() != 2 {
		t.Errorf("Expected 2 cached pages, got %d", c.Len())
	}
	if c.Contains(0, 1, 0) {
		t.Error("Expected the least recently used page to be evicted")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Errorf("Expected an empty cache, got %d", c.Len())
	}
}

func TestPageCacheError(t *testing.T) {
	boom := errors.New("boom")
	c, err := New(&countingRenderer{err: boom}, 4)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get(1, 1, 0); !errors.Is(err, boom) {
		t.Errorf("Expected the render error, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("Failed renders must not be cached")
	}
}

func TestPageCacheConcurrent(t *testing.T) {
	r := &countingRenderer{delay: 20 * time.Millisecond}
	c, err := New(r, 4)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(3, 1, 0); err != nil {
				t.Errorf("Failed to render: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := r.calls.Load(); n != 1 {
		t.Errorf("Expected concurrent requests to share one render, got %d", n)
	}
}

func TestNewInvalidSize(t *testing.T) {
	if _, err := New(&countingRenderer{}, 0); err == nil {
		t.Error("Expected an error for size 0")
	}
}
