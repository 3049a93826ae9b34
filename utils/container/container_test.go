package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/vehicle-movement-sim/utils/container"
)

func TestPriorityQueueOrder(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	q.HeapPush("c", 3)
	q.HeapPush("a", 1)
	q.HeapPush("d", 4)
	q.HeapPush("b", 2)
	assert.Equal(t, 4, q.Len())
	var got []string
	for q.Len() > 0 {
		v, _ := q.HeapPop()
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

type testItem struct {
	container.IncrementalItemBase
	name string
}

func TestIncrementalArrayDeferredAdd(t *testing.T) {
	a := container.NewIncrementalArray[*testItem]()
	x, y := &testItem{name: "x"}, &testItem{name: "y"}
	a.Add(x)
	a.Add(y)
	assert.Equal(t, 0, a.Len())

	a.Prepare()
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, []*testItem{x, y}, a.Data())
	assert.Equal(t, 0, x.Index())
	assert.Equal(t, 1, y.Index())

	z := &testItem{name: "z"}
	a.Add(z)
	a.Prepare()
	assert.Equal(t, 2, z.Index())
}
