// Package queue holds the transfers prepared in a session until they are
// batched into one Safe transaction.
package queue

import (
	"sync"

	"github.com/tranvictor/safetx/common"
)

// Queue is a FIFO of prepared transactions. All methods are safe for
// concurrent use.
type Queue struct {
	mu    sync.Mutex
	items []common.PreparedTx
}

func New() *Queue {
	return &Queue{}
}

func (q *Queue) Push(description string, tx common.UnsignedTransaction) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, common.PreparedTx{Description: description, Tx: tx})
}

// DrainAll returns every queued item in insertion order and empties the
// queue in one step.
func (q *Queue) DrainAll() []common.PreparedTx {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = nil
	if result == nil {
		return []common.PreparedTx{}
	}
	return result
}

// PeekAll returns a copy of the queued items without removing them.
func (q *Queue) PeekAll() []common.PreparedTx {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]common.PreparedTx{}, q.items...)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Requeue puts items back in front of whatever was pushed since they were
// drained, keeping their original order.
func (q *Queue) Requeue(items []common.PreparedTx) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append([]common.PreparedTx{}, items...), q.items...)
}
