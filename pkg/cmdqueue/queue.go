package cmdqueue

import (
	"errors"
	"sync"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
)

// ErrEmptyQueue is returned by Dequeue when there is nothing queued.
var ErrEmptyQueue = errors.New("command queue is empty")

const initialSize = 8

// Queue is an unbounded FIFO of pending directions.  It is safe to use
// from multiple producers and a single consumer.
type Queue struct {
	lock sync.Mutex

	// Ring buffer; len(buf) is always a power of two.
	buf   []direction.Direction
	head  int
	count int
}

func New() *Queue {
	return &Queue{
		buf: make([]direction.Direction, initialSize),
	}
}

// Enqueue appends d to the tail.
func (q *Queue) Enqueue(d direction.Direction) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.buf == nil {
		q.buf = make([]direction.Direction, initialSize)
	}
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.count)&(len(q.buf)-1)] = d
	q.count++
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (direction.Direction, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.count == 0 {
		return direction.Forward, false
	}
	return q.buf[q.head], true
}

// Dequeue removes and returns the head.
func (q *Queue) Dequeue() (direction.Direction, error) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.count == 0 {
		return direction.Forward, ErrEmptyQueue
	}
	d := q.buf[q.head]
	q.head = (q.head + 1) & (len(q.buf) - 1)
	q.count--
	return d, nil
}

func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.count
}

// Clear drops everything that is queued.
func (q *Queue) Clear() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.head = 0
	q.count = 0
}

// Snapshot returns the queued directions, head first.
func (q *Queue) Snapshot() []direction.Direction {
	q.lock.Lock()
	defer q.lock.Unlock()

	out := make([]direction.Direction, q.count)
	for i := range out {
		out[i] = q.buf[(q.head+i)&(len(q.buf)-1)]
	}
	return out
}

// grow doubles the buffer, unwrapping the contents to start at index 0.
func (q *Queue) grow() {
	buf := make([]direction.Direction, len(q.buf)*2)
	n := copy(buf, q.buf[q.head:])
	copy(buf[n:], q.buf[:q.head])
	q.buf = buf
	q.head = 0
}
