package heap

// MinHeap is a binary heap with O(1) membership lookup so that arbitrary
// entries can be removed or reprioritized without a linear scan. Items must be
// comparable map keys (pointers in practice).
type MinHeap[T comparable] struct {
	items []T
	index map[T]int
	less  func(a, b T) bool
}

func NewMinHeap[T comparable](less func(a T, b T) bool) *MinHeap[T] {
	return &MinHeap[T]{
		items: make([]T, 0),
		index: make(map[T]int),
		less:  less,
	}
}

func (h *MinHeap[T]) Len() int { return len(h.items) }

func (h *MinHeap[T]) Push(item T) {
	h.items = append(h.items, item)
	h.index[item] = len(h.items) - 1
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap[T]) Pop() (T, bool) {
	var zero T
	if len(h.items) == 0 {
		return zero, false
	}
	top := h.items[0]
	h.removeAt(0)
	return top, true
}

func (h *MinHeap[T]) Peek() (T, bool) {
	var zero T
	if len(h.items) == 0 {
		return zero, false
	}
	return h.items[0], true
}

func (h *MinHeap[T]) Remove(item T) (T, bool) {
	var zero T
	i, ok := h.index[item]
	if !ok {
		return zero, false
	}
	removed := h.items[i]
	h.removeAt(i)
	return removed, true
}

// Update restores heap order after the item's priority changed in place.
func (h *MinHeap[T]) Update(item T) bool {
	i, ok := h.index[item]
	if !ok {
		return false
	}
	if !h.siftUp(i) {
		h.siftDown(i)
	}
	return true
}

func (h *MinHeap[T]) removeAt(i int) {
	last := len(h.items) - 1
	delete(h.index, h.items[i])
	if i != last {
		h.items[i] = h.items[last]
		h.index[h.items[i]] = i
	}
	h.items = h.items[:last]
	if i < len(h.items) {
		if !h.siftUp(i) {
			h.siftDown(i)
		}
	}
}

func (h *MinHeap[T]) siftUp(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(h.items[i], h.items[parent]) {
			break
		}
		h.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (h *MinHeap[T]) siftDown(i int) {
	for {
		left := 2*i + 1
		right := 2*i + 2
		smallest := i
		if left < len(h.items) && h.less(h.items[left], h.items[smallest]) {
			smallest = left
		}
		if right < len(h.items) && h.less(h.items[right], h.items[smallest]) {
			smallest = right
		}
		if smallest == i {
			return
		}
		h.swap(i, smallest)
		i = smallest
	}
}

func (h *MinHeap[T]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.items[i]] = i
	h.index[h.items[j]] = j
}
