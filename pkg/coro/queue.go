package coro

// fifo is an unbounded first-in first-out queue. It is not safe for
// concurrent use; the channel lock guards it.
type fifo[T any] struct {
	items []T
	head  int
}

func (q *fifo[T]) len() int {
	return len(q.items) - q.head
}

func (q *fifo[T]) push(v T) {
	if q.head > 0 && q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	q.items = append(q.items, v)
}

func (q *fifo[T]) peek() (T, bool) {
	if q.len() == 0 {
		var zero T
		return zero, false
	}
	return q.items[q.head], true
}

func (q *fifo[T]) pop() (T, bool) {
	v, ok := q.peek()
	if !ok {
		return v, false
	}
	var zero T
	q.items[q.head] = zero
	q.head++
	return v, true
}

// drain removes every item and calls fn on each in order.
func (q *fifo[T]) drain(fn func(T)) {
	for {
		v, ok := q.pop()
		if !ok {
			break
		}
		fn(v)
	}
	q.items = nil
	q.head = 0
}
