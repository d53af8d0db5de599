package topk

import "container/heap"

// Compile time check to ensure candidateQueue satisfies the heap interface.
var _ heap.Interface = (*candidateQueue)(nil)

// candidateQueue implements heap.Interface over Candidates.
//
// With Max set, the worst candidate (largest distance, ties resolved toward
// the larger item index) sits on top, which is the eviction order needed for
// a bounded top-k selection. Without Max, the best candidate is on top.
type candidateQueue struct {
	Max   bool
	Items []Candidate
}

// Len returns the number of elements in the queue.
func (q *candidateQueue) Len() int { return len(q.Items) }

// Less reports whether the element with index i should sort before the element with index j.
func (q *candidateQueue) Less(i, j int) bool {
	a, b := q.Items[i], q.Items[j]
	if q.Max {
		if a.Distance != b.Distance {
			return a.Distance > b.Distance
		}
		return a.Index > b.Index
	}
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Index < b.Index
}

// Swap swaps the elements with indexes i and j.
func (q *candidateQueue) Swap(i, j int) {
	q.Items[i], q.Items[j] = q.Items[j], q.Items[i]
}

// Push adds x to the queue.
func (q *candidateQueue) Push(x any) {
	item, _ := x.(Candidate)
	q.Items = append(q.Items, item)
}

// Pop removes and returns the top element from the queue.
func (q *candidateQueue) Pop() any {
	old := q.Items
	n := len(old)
	item := old[n-1]
	q.Items = old[:n-1]

	return item
}

// Top returns the top element without removing it.
func (q *candidateQueue) Top() Candidate {
	return q.Items[0]
}
