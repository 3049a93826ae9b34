package container

import (
	"sync"
)

// IIncrementalItem 支持增量更新的元素接口
// 说明：元素自己记录在数组中的位置
type IIncrementalItem interface {
	Index() int
	SetIndex(index int)
}

// IncrementalItemBase 可嵌入的索引字段，快速实现IIncrementalItem
type IncrementalItemBase struct {
	index int
}

func (b *IncrementalItemBase) Index() int {
	return b.index
}

func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

// IncrementalArray 增量数组
// 功能：模拟步内只登记新增元素，到下一步Prepare时统一加入，保证Update期间Data()不变
type IncrementalArray[T IIncrementalItem] struct {
	data     []T
	add      []T
	addMutex sync.Mutex
}

// NewIncrementalArray 创建增量数组
func NewIncrementalArray[T IIncrementalItem]() *IncrementalArray[T] {
	return &IncrementalArray[T]{
		data: make([]T, 0),
		add:  make([]T, 0),
	}
}

// Len 获取当前数组长度（不含待加入元素）
func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 获取当前数据
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

// Add 增加元素（等到Prepare时才会真正增加，线程安全）
func (a *IncrementalArray[T]) Add(value T) {
	a.addMutex.Lock()
	defer a.addMutex.Unlock()
	a.add = append(a.add, value)
}

// Prepare 把待加入元素追加到数组末尾并设置索引
func (a *IncrementalArray[T]) Prepare() {
	a.addMutex.Lock()
	defer a.addMutex.Unlock()
	for i, x := range a.add {
		x.SetIndex(len(a.data) + i)
	}
	a.data = append(a.data, a.add...)
	a.add = []T{}
}
