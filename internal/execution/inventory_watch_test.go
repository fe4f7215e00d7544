package execution

import (
	"sync"
	"testing"

	"kraken-mm/pkg/types"
)

func TestInventoryWatchReturnsLatestValue(t *testing.T) {
	t.Parallel()

	w := NewInventoryWatch()
	if got := w.Get(); got != (types.Inventory{}) {
		t.Fatalf("expected zero-value inventory before any Set, got %+v", got)
	}

	w.Set(types.Inventory{Base: 1, Quote: 100})
	w.Set(types.Inventory{Base: 2, Quote: 200})

	got := w.Get()
	want := types.Inventory{Base: 2, Quote: 200}
	if got != want {
		t.Fatalf("Get() = %+v, want %+v", got, want)
	}
}

func TestInventoryWatchConcurrentAccess(t *testing.T) {
	t.Parallel()

	w := NewInventoryWatch()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w.Set(types.Inventory{Base: float64(n)})
		}(i)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Get()
		}()
	}
	wg.Wait()
}
