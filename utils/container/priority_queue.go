package container

import "container/heap"

// entry 堆中的一项
// 说明：A*对同一格子重复入堆（惰性删除），不需要记录项在堆中的位置
type entry[T any] struct {
	value    T
	priority float64 // 越小越优先
}

// minHeap 按priority排序的最小堆，实现heap.Interface
type minHeap[T any] []entry[T]

func (h minHeap[T]) Len() int           { return len(h) }
func (h minHeap[T]) Less(i, j int) bool { return h[i].priority < h[j].priority }
func (h minHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap[T]) Push(x any) {
	*h = append(*h, x.(entry[T]))
}

func (h *minHeap[T]) Pop() any {
	n := len(*h) - 1
	last := (*h)[n]
	*h = (*h)[:n]
	return last
}

// PriorityQueue 优先队列
// 功能：A*搜索的开放集合，按估计总代价从小到大弹出
type PriorityQueue[T any] struct {
	queue minHeap[T]
}

// NewPriorityQueue 创建优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{queue: make(minHeap[T], 0)}
}

// Len 获取当前队列长度
func (q *PriorityQueue[T]) Len() int {
	return len(q.queue)
}

// HeapPush 加入元素并维护堆结构
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	heap.Push(&q.queue, entry[T]{value: value, priority: priority})
}

// HeapPop 弹出优先级数值最小的元素
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	e := heap.Pop(&q.queue).(entry[T])
	return e.value, e.priority
}
