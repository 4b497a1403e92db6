package tracker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordAndDiffIsIdempotent(t *testing.T) {
	k := New()
	fresh, snap := k.RecordAndDiff([]string{"b", "a", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, fresh)
	assert.Equal(t, []string{"a", "b", "c"}, snap)

	fresh, snap2 := k.RecordAndDiff([]string{"b", "a", "c"})
	assert.Empty(t, fresh)
	assert.Equal(t, snap, snap2)
}

func TestRecordAndDiffReportsOnlyArrivals(t *testing.T) {
	k := New()
	k.RecordAndDiff([]string{"1", "2"})
	fresh, snap := k.RecordAndDiff([]string{"2", "3", "3", ""})
	assert.Equal(t, []string{"3"}, fresh)
	assert.Equal(t, []string{"1", "2", "3"}, snap)
	assert.Equal(t, 3, k.Len())
}

func TestSnapshotDoesNotMutate(t *testing.T) {
	k := New()
	assert.Empty(t, k.Snapshot())
	k.RecordAndDiff([]string{"x"})
	snap := k.Snapshot()
	snap[0] = "changed"
	assert.Equal(t, []string{"x"}, k.Snapshot())
}

func TestConcurrentAccess(t *testing.T) {
	k := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			k.RecordAndDiff([]string{fmt.Sprintf("id-%d", i%4)})
			_ = k.Snapshot()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, k.Len())
}
