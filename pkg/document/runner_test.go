package document

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pyhub-apps/docview-golang/pkg/engine"
)

func TestParallelRunner(t *testing.T) {
	if got := NewParallelRunner(0).Workers(); got != runtime.GOMAXPROCS(0) {
		t.Errorf("Expected GOMAXPROCS workers, got %d", got)
	}

	r := NewParallelRunner(3)
	var running, peak atomic.Int32
	done := make([]bool, 50)
	var mu sync.Mutex
	r.Run(len(done), func(i int) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		done[i] = true
		mu.Unlock()
		running.Add(-1)
	})

	for i, ok := range done {
		if !ok {
			t.Errorf("Task %d did not run", i)
		}
	}
	if peak.Load() > 3 {
		t.Errorf("Expected at most 3 concurrent tasks, saw %d", peak.Load())
	}
}

// stripeRunner runs tasks serially and records the rows each one wrote
type stripeRunner struct {
	workers int
	current int
	rows    map[int][]int
}

func (r *stripeRunner) Workers() int { return r.workers }

func (r *stripeRunner) Run(n int, task func(i int)) {
	for i := 0; i < n; i++ {
		r.current = i
		task(i)
	}
}

func TestCopyPixmapStripes(t *testing.T) {
	pix, err := engine.NewPixmapWithBBox(engine.IRect{X0: 5, Y0: -3, X1: 9, Y1: 7})
	if err != nil {
		t.Fatal(err)
	}
	defer pix.Drop()
	pix.Clear(0x80)

	r := &stripeRunner{workers: 3, rows: make(map[int][]int)}
	copyPixmap(PixelWriterFunc(func(x, y int, red, g, b uint8) {
		if x == 0 {
			r.rows[r.current] = append(r.rows[r.current], y)
		}
		if red != 0x80 || g != 0x80 || b != 0x80 {
			t.Errorf("Unexpected color at (%d, %d)", x, y)
		}
	}), pix, r)

	// height 10 over 3 stripes: 3, 3 and the remaining 4 rows
	want := map[int][]int{0: {0, 1, 2}, 1: {3, 4, 5}, 2: {6, 7, 8, 9}}
	for i, rows := range want {
		if len(r.rows[i]) != len(rows) {
			t.Fatalf("Stripe %d: expected rows %v, got %v", i, rows, r.rows[i])
		}
		for j := range rows {
			if r.rows[i][j] != rows[j] {
				t.Errorf("Stripe %d: expected rows %v, got %v", i, rows, r.rows[i])
				break
			}
		}
	}
}
