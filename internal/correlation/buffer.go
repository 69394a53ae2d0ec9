package correlation

// sessionBuffer is a fixed-capacity ring of events. Slots are addressed by a
// monotonically increasing sequence number; the path index stores sequence
// numbers rather than copies of events, and eviction prunes it.
type sessionBuffer struct {
	slots []slot
	head  int    // index of the oldest slot
	count int    // live slots
	next  uint64 // sequence number of the next push
	paths map[string][]uint64
}

type slot struct {
	seq   uint64
	event SecurityEvent
	keys  []string
}

func newSessionBuffer(capacity int) *sessionBuffer {
	return &sessionBuffer{
		slots: make([]slot, capacity),
		paths: make(map[string][]uint64),
	}
}

func (b *sessionBuffer) push(e SecurityEvent, keys []string) {
	if b.count == len(b.slots) {
		b.evictOldest()
	}
	idx := (b.head + b.count) % len(b.slots)
	b.slots[idx] = slot{seq: b.next, event: e, keys: keys}
	for _, k := range keys {
		b.paths[k] = append(b.paths[k], b.next)
	}
	b.count++
	b.next++
}

func (b *sessionBuffer) evictOldest() {
	old := b.slots[b.head]
	for _, k := range old.keys {
		// Sequence lists are ascending, so the evicted entry is always first.
		seqs := b.paths[k]
		if len(seqs) > 0 && seqs[0] == old.seq {
			seqs = seqs[1:]
		}
		if len(seqs) == 0 {
			delete(b.paths, k)
		} else {
			b.paths[k] = seqs
		}
	}
	b.slots[b.head] = slot{}
	b.head = (b.head + 1) % len(b.slots)
	b.count--
}

// slot returns the live slot holding seq.
func (b *sessionBuffer) slot(seq uint64) slot {
	oldest := b.next - uint64(b.count)
	return b.slots[(b.head+int(seq-oldest))%len(b.slots)]
}

// each visits live events oldest first.
func (b *sessionBuffer) each(fn func(SecurityEvent)) {
	for i := 0; i < b.count; i++ {
		fn(b.slots[(b.head+i)%len(b.slots)].event)
	}
}
