package capture

import "fmt"

// Ownership tags which party currently owns a Buffer.
type Ownership int

const (
	Free Ownership = iota
	DeviceQueued
	ApplicationHeld
)

func (o Ownership) String() string {
	switch o {
	case Free:
		return "free"
	case DeviceQueued:
		return "device-queued"
	case ApplicationHeld:
		return "application-held"
	default:
		return fmt.Sprintf("Ownership(%d)", int(o))
	}
}

// Buffer is one fixed slot of the pool.
type Buffer struct {
	Index     int
	BytesUsed int

	data  []byte
	owner Ownership
}

// Owner returns the current owner of the buffer.
func (b *Buffer) Owner() Ownership { return b.owner }

// Len returns the mapped length of the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns a read-only view of the filled portion of the buffer. It is
// nil unless the buffer is held by the application; the view must not be
// used after Release.
func (b *Buffer) Bytes() []byte {
	if b.owner != ApplicationHeld {
		return nil
	}
	n := b.BytesUsed
	if n <= 0 || n > len(b.data) {
		n = len(b.data)
	}
	return b.data[:n:n]
}

// OwnershipCounts is a census of the pool by owner.
type OwnershipCounts struct {
	Free            int
	DeviceQueued    int
	ApplicationHeld int
}

// Total returns the number of buffers counted.
func (c OwnershipCounts) Total() int {
	return c.Free + c.DeviceQueued + c.ApplicationHeld
}

// queuer is the subset of Driver the pool needs to move buffers.
type queuer interface {
	Queue(index int) error
	Dequeue() (index, bytesUsed int, ok bool, err error)
}

// BufferPool is an arena of N fixed slots indexed by integer handle. Acquire
// and Release are the only transitions available while streaming.
type BufferPool struct {
	q     queuer
	slots []Buffer
}

func newBufferPool(q queuer, regions [][]byte) *BufferPool {
	p := &BufferPool{q: q, slots: make([]Buffer, len(regions))}
	for i, r := range regions {
		p.slots[i] = Buffer{Index: i, data: r, owner: Free}
	}
	return p
}

// Len returns the number of buffers in the pool.
func (p *BufferPool) Len() int { return len(p.slots) }

// Counts returns how many buffers each owner holds.
func (p *BufferPool) Counts() OwnershipCounts {
	var c OwnershipCounts
	for i := range p.slots {
		switch p.slots[i].owner {
		case Free:
			c.Free++
		case DeviceQueued:
			c.DeviceQueued++
		case ApplicationHeld:
			c.ApplicationHeld++
		}
	}
	return c
}

// Acquire returns the next buffer the driver has filled, moving it from
// DeviceQueued to ApplicationHeld. It returns ErrNoBufferReady when nothing
// is filled yet.
func (p *BufferPool) Acquire() (*Buffer, error) {
	idx, used, ok, err := p.q.Dequeue()
	if err != nil {
		return nil, fmt.Errorf("dequeue buffer: %w", err)
	}
	if !ok {
		return nil, ErrNoBufferReady
	}
	if idx < 0 || idx >= len(p.slots) {
		return nil, fmt.Errorf("%w: driver returned buffer %d outside pool of %d", ErrInvalidOwnership, idx, len(p.slots))
	}
	b := &p.slots[idx]
	if b.owner != DeviceQueued {
		return nil, fmt.Errorf("%w: driver returned buffer %d while %s", ErrInvalidOwnership, idx, b.owner)
	}
	b.owner = ApplicationHeld
	b.BytesUsed = used
	return b, nil
}

// Release re-queues an application-held buffer to the driver.
func (p *BufferPool) Release(b *Buffer) error {
	if b == nil || b.Index < 0 || b.Index >= len(p.slots) || &p.slots[b.Index] != b {
		return fmt.Errorf("%w: buffer does not belong to this pool", ErrInvalidOwnership)
	}
	if b.owner != ApplicationHeld {
		return fmt.Errorf("%w: release of buffer %d while %s", ErrInvalidOwnership, b.Index, b.owner)
	}
	if err := p.q.Queue(b.Index); err != nil {
		return fmt.Errorf("queue buffer %d: %w", b.Index, err)
	}
	b.owner = DeviceQueued
	b.BytesUsed = 0
	return nil
}

// submitAll queues every free buffer to the driver.
func (p *BufferPool) submitAll() error {
	for i := range p.slots {
		b := &p.slots[i]
		if b.owner != Free {
			continue
		}
		if err := p.q.Queue(i); err != nil {
			return fmt.Errorf("queue buffer %d: %w", i, err)
		}
		b.owner = DeviceQueued
	}
	return nil
}

// reclaim marks every buffer Free. The driver has already dropped its queue
// when this is called (STREAMOFF).
func (p *BufferPool) reclaim() {
	for i := range p.slots {
		p.slots[i].owner = Free
		p.slots[i].BytesUsed = 0
	}
}

func (p *BufferPool) regions() [][]byte {
	out := make([][]byte, len(p.slots))
	for i := range p.slots {
		out[i] = p.slots[i].data
	}
	return out
}
