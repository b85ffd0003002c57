package updater

import "container/heap"

// dirQueue is a priority queue of directories, deepest first.
type dirQueue []string

func (q dirQueue) Len() int           { return len(q) }
func (q dirQueue) Less(i, j int) bool { return compareDepthFirst(q[i], q[j]) < 0 }
func (q dirQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *dirQueue) Push(x any) {
	*q = append(*q, x.(string)) //nolint:forcetypeassert // only strings are pushed
}

func (q *dirQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]

	return item
}

func newDirQueue(dirs DirSet) *dirQueue {
	q := make(dirQueue, 0, len(dirs))
	for d := range dirs {
		q = append(q, d)
	}

	heap.Init(&q)

	return &q
}

func (q *dirQueue) push(dir string) {
	heap.Push(q, dir)
}

func (q *dirQueue) pop() string {
	return heap.Pop(q).(string) //nolint:forcetypeassert // only strings are pushed
}
