package priocq

import (
    "testing"

    "github.com/stretchr/testify/require"
)

type item struct {
    key uint32
    seq int
}

func TestStrictPriority(t *testing.T) {
    q := New[item]()
    q.Enqueue(1, L2Bulk, item{1, 0})
    q.Enqueue(2, L1Duplex, item{2, 0})
    q.Enqueue(3, L0Control, item{3, 0})
    var got []uint32
    for _, it := range q.Drain() { got = append(got, it.key) }
    require.Equal(t, []uint32{3, 2, 1}, got)
    require.Zero(t, q.Len())
}

func TestFIFOPerKey(t *testing.T) {
    q := New[item]()
    for i := 0; i < 10; i++ {
        q.Enqueue(5, L1Duplex, item{5, i})
        q.Enqueue(7, L1Duplex, item{7, i})
    }
    // a later control-class item joins the existing flow and cannot overtake
    q.Enqueue(5, L0Control, item{5, 10})
    last := map[uint32]int{5: -1, 7: -1}
    for _, it := range q.Drain() {
        require.Equal(t, last[it.key]+1, it.seq, "key %d out of order", it.key)
        last[it.key] = it.seq
    }
    require.Equal(t, 10, last[5])
}

func TestRoundRobinWithinClass(t *testing.T) {
    q := New[item]()
    for i := 0; i < 8; i++ {
        q.Enqueue(1, L1Duplex, item{1, i})
        q.Enqueue(2, L1Duplex, item{2, i})
    }
    out := q.Drain()
    // quantum for the duplex class is 4 packets
    require.Equal(t, uint32(1), out[0].key)
    require.Equal(t, uint32(1), out[3].key)
    require.Equal(t, uint32(2), out[4].key)
    require.Equal(t, uint32(2), out[7].key)
    require.Equal(t, uint32(1), out[8].key)
}

func TestPurge(t *testing.T) {
    q := New[item]()
    q.Enqueue(1, L1Duplex, item{1, 0})
    q.Enqueue(2, L1Duplex, item{2, 0})
    q.Enqueue(1, L1Duplex, item{1, 1})
    q.Enqueue(1, L1Duplex, item{1, 2})

    removed := q.Purge(1, func(it item) bool { return it.seq == 2 })
    require.Len(t, removed, 2)
    require.Equal(t, 2, q.Len())

    removed = q.Purge(1, nil)
    require.Len(t, removed, 1)
    require.Nil(t, q.Purge(1, nil))
    require.Nil(t, q.Purge(99, nil))

    it, ok := q.Pop()
    require.True(t, ok)
    require.Equal(t, uint32(2), it.key)
    _, ok = q.Pop()
    require.False(t, ok)

    // the key starts a fresh flow, possibly in another class
    q.Enqueue(1, L0Control, item{1, 3})
    q.Enqueue(4, L2Bulk, item{4, 0})
    it, _ = q.Pop()
    require.Equal(t, uint32(1), it.key)
}
