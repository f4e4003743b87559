// Package priocq orders outbound packets: strict priority between classes,
// deficit round robin between flows of the same class.
package priocq

// Class is a priority class: L0 control > L1 duplex > L2 bulk
type Class int

const (
    L0Control Class = iota
    L1Duplex
    L2Bulk
    numClasses
)

func (c Class) String() string {
    switch c {
    case L0Control:
        return "control"
    case L1Duplex:
        return "duplex"
    case L2Bulk:
        return "bulk"
    default:
        return "unknown"
    }
}

func chooseQuantum(c Class) int {
    switch c {
    case L0Control:
        return 1 // single packets, quick turn
    case L1Duplex:
        return 4
    default:
        return 16
    }
}

// flow holds the pending items of one key, FIFO.
type flow[T any] struct {
    key     uint32
    q       []T
    deficit int
}

type level[T any] struct {
    flows   map[uint32]*flow[T]
    order   []uint32 // round robin order
    idx     int
    quantum int
}

// Queue is not safe for concurrent use; callers hold their own lock.
//
// A key that already has pending items keeps the class of its first item,
// so items of one key always leave in enqueue order.
type Queue[T any] struct {
    lvls  [numClasses]*level[T]
    byKey map[uint32]*flow[T]
    class map[uint32]Class
    n     int
}

func New[T any]() *Queue[T] {
    q := &Queue[T]{byKey: make(map[uint32]*flow[T]), class: make(map[uint32]Class)}
    for i := range q.lvls {
        q.lvls[i] = &level[T]{flows: make(map[uint32]*flow[T]), quantum: chooseQuantum(Class(i))}
    }
    return q
}

// Len returns the number of pending items.
func (q *Queue[T]) Len() int { return q.n }

// Enqueue appends it to the flow of key.
func (q *Queue[T]) Enqueue(key uint32, cls Class, it T) {
    if cls < 0 || cls >= numClasses { cls = L2Bulk }
    f := q.byKey[key]
    if f == nil {
        lvl := q.lvls[cls]
        f = &flow[T]{key: key}
        lvl.flows[key] = f
        lvl.order = append(lvl.order, key)
        q.byKey[key] = f
        q.class[key] = cls
    }
    f.q = append(f.q, it)
    q.n++
}

// Pop removes the next item by strict priority, then DRR within the level.
func (q *Queue[T]) Pop() (T, bool) {
    var zero T
    if q.n == 0 { return zero, false }
    for _, lvl := range q.lvls {
        if len(lvl.order) == 0 { continue }
        if lvl.idx >= len(lvl.order) { lvl.idx = 0 }
        f := lvl.flows[lvl.order[lvl.idx]]
        if f.deficit <= 0 { f.deficit = lvl.quantum }
        it := f.q[0]
        f.q[0] = zero
        f.q = f.q[1:]
        f.deficit--
        q.n--
        switch {
        case len(f.q) == 0:
            q.removeFlow(lvl, lvl.idx)
        case f.deficit <= 0:
            lvl.idx++
        }
        return it, true
    }
    return zero, false
}

// Drain pops everything in scheduling order.
func (q *Queue[T]) Drain() []T {
    out := make([]T, 0, q.n)
    for {
        it, ok := q.Pop()
        if !ok { return out }
        out = append(out, it)
    }
}

// Purge removes the pending items of key for which keep returns false
// (all of them when keep is nil) and returns them in order.
func (q *Queue[T]) Purge(key uint32, keep func(T) bool) []T {
    f := q.byKey[key]
    if f == nil { return nil }
    var removed []T
    kept := f.q[:0]
    for _, it := range f.q {
        if keep != nil && keep(it) {
            kept = append(kept, it)
            continue
        }
        removed = append(removed, it)
    }
    var zero T
    for i := len(kept); i < len(f.q); i++ { f.q[i] = zero }
    f.q = kept
    q.n -= len(removed)
    if len(f.q) == 0 {
        lvl := q.lvls[q.class[key]]
        for i, k := range lvl.order {
            if k == key { q.removeFlow(lvl, i); break }
        }
    }
    return removed
}

func (q *Queue[T]) removeFlow(lvl *level[T], i int) {
    key := lvl.order[i]
    delete(lvl.flows, key)
    delete(q.byKey, key)
    delete(q.class, key)
    lvl.order = append(lvl.order[:i], lvl.order[i+1:]...)
    if i < lvl.idx { lvl.idx-- }
    if lvl.idx >= len(lvl.order) { lvl.idx = 0 }
}
