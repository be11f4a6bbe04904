package capture

import (
	"errors"
	"math/rand"
	"testing"
)

func TestBufferPool_AcquireRelease(t *testing.T) {
	dev, _ := newStreamingDevice(t, -1, 3)
	pool := dev.Pool()

	b, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if b.Owner() != ApplicationHeld {
		t.Fatalf("owner = %s, want application-held", b.Owner())
	}
	if got := pool.Counts(); got != (OwnershipCounts{DeviceQueued: 2, ApplicationHeld: 1}) {
		t.Fatalf("counts = %+v", got)
	}

	if err := pool.Release(b); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if b.Owner() != DeviceQueued {
		t.Errorf("owner = %s, want device-queued", b.Owner())
	}
	if b.Bytes() != nil {
		t.Error("Bytes() must be nil once the buffer is back with the device")
	}
}

func TestBufferPool_ReleaseNotHeld(t *testing.T) {
	dev, _ := newStreamingDevice(t, -1, 2)
	pool := dev.Pool()

	b, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := pool.Release(b); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := pool.Release(b); !errors.Is(err, ErrInvalidOwnership) {
		t.Errorf("double release: got %v, want ErrInvalidOwnership", err)
	}

	stranger := &Buffer{Index: 0, owner: ApplicationHeld}
	if err := pool.Release(stranger); !errors.Is(err, ErrInvalidOwnership) {
		t.Errorf("foreign buffer: got %v, want ErrInvalidOwnership", err)
	}
	if err := pool.Release(nil); !errors.Is(err, ErrInvalidOwnership) {
		t.Errorf("nil buffer: got %v, want ErrInvalidOwnership", err)
	}
}

func TestBufferPool_NoBufferReady(t *testing.T) {
	dev, _ := newStreamingDevice(t, -1, 2)
	pool := dev.Pool()

	for i := 0; i < 2; i++ {
		if _, err := pool.Acquire(); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if _, err := pool.Acquire(); !errors.Is(err, ErrNoBufferReady) {
		t.Errorf("got %v, want ErrNoBufferReady when every buffer is held", err)
	}
}

// TestBufferPool_OwnershipProperties drives random acquire/release sequences
// and checks conservation and exclusivity after every step.
func TestBufferPool_OwnershipProperties(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		rng := rand.New(rand.NewSource(seed))
		n := 1 + rng.Intn(8)
		dev, _ := newStreamingDevice(t, -1, n)
		pool := dev.Pool()

		held := map[int]*Buffer{}
		for step := 0; step < 200; step++ {
			if len(held) == 0 || rng.Intn(2) == 0 {
				b, err := pool.Acquire()
				if errors.Is(err, ErrNoBufferReady) {
					if len(held) != n {
						t.Fatalf("seed %d step %d: no buffer ready with %d/%d held", seed, step, len(held), n)
					}
					continue
				}
				if err != nil {
					t.Fatalf("seed %d step %d: Acquire: %v", seed, step, err)
				}
				if _, dup := held[b.Index]; dup {
					t.Fatalf("seed %d step %d: buffer %d acquired twice without release", seed, step, b.Index)
				}
				held[b.Index] = b
			} else {
				for idx, b := range held {
					if err := pool.Release(b); err != nil {
						t.Fatalf("seed %d step %d: Release(%d): %v", seed, step, idx, err)
					}
					delete(held, idx)
					break
				}
			}

			c := pool.Counts()
			if c.Total() != n {
				t.Fatalf("seed %d step %d: counts %+v do not sum to %d", seed, step, c, n)
			}
			if c.ApplicationHeld != len(held) {
				t.Fatalf("seed %d step %d: %d held by pool census, %d by caller", seed, step, c.ApplicationHeld, len(held))
			}
		}
	}
}

func TestBuffer_BytesView(t *testing.T) {
	dev, _ := newStreamingDevice(t, -1, 2)
	b, ok, err := dev.GrabFrame()
	if err != nil || !ok {
		t.Fatalf("GrabFrame: ok=%v err=%v", ok, err)
	}
	view := b.Bytes()
	if len(view) != b.Len() {
		t.Fatalf("view len %d, want %d", len(view), b.Len())
	}
	if cap(view) != len(view) {
		t.Errorf("view capacity %d leaks past the filled region", cap(view))
	}
	if view[1] != 128 {
		t.Errorf("chroma byte = %d, want 128", view[1])
	}
}
