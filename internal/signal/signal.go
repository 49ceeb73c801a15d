// Package signal provides small observable values for composing derived state.
//
// A [Var] holds a value and a version that increases on every Set. [Derive]
// builds a read-only Var whose value is recomputed from its sources whenever
// any of them changes. Subscribers receive the latest value; intermediate
// values may be skipped but the final value is always delivered.
package signal

import (
	"slices"
	"sync"
)

// Var is a versioned observable cell. The zero value is not usable; create
// one with [New].
type Var[T any] struct {
	mu      sync.Mutex
	value   T
	ver     uint64
	subs    map[int]chan struct{}
	nextSub int
}

// New returns a Var holding initial at version 0.
func New[T any](initial T) *Var[T] {
	return &Var[T]{value: initial, subs: map[int]chan struct{}{}}
}

// Get returns the current value and its version.
func (v *Var[T]) Get() (T, uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value, v.ver
}

// Value returns the current value.
func (v *Var[T]) Value() T {
	val, _ := v.Get()
	return val
}

// Set stores val and notifies subscribers.
func (v *Var[T]) Set(val T) {
	v.mu.Lock()
	v.value = val
	v.ver++
	v.notifyLocked()
	v.mu.Unlock()
}

// Update applies fn to the current value under the lock and stores the result.
func (v *Var[T]) Update(fn func(T) T) {
	v.mu.Lock()
	v.value = fn(v.value)
	v.ver++
	v.notifyLocked()
	v.mu.Unlock()
}

func (v *Var[T]) notifyLocked() {
	for _, ch := range v.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Changed returns a channel that receives a token after each change, with
// changes coalesced while the token is pending, and a function that ends the
// subscription.
func (v *Var[T]) Changed() (<-chan struct{}, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch := make(chan struct{}, 1)
	id := v.nextSub
	v.nextSub++
	v.subs[id] = ch
	return ch, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}

// Watch returns a channel of values: the current one immediately, then the
// latest after every change. The channel is closed when done is closed.
func (v *Var[T]) Watch(done <-chan struct{}) <-chan T {
	out := make(chan T, 1)
	changed, stop := v.Changed()
	out <- v.Value()
	go func() {
		defer close(out)
		defer stop()
		for {
			select {
			case <-done:
				return
			case <-changed:
				val := v.Value()
				select {
				case <-out:
				default:
				}
				out <- val
			}
		}
	}()
	return out
}

// Source is the read side of a Var, used as an input to [Derive].
type Source interface {
	version() uint64
	changed() (<-chan struct{}, func())
}

func (v *Var[T]) version() uint64 {
	_, ver := v.Get()
	return ver
}

func (v *Var[T]) changed() (<-chan struct{}, func()) { return v.Changed() }

// Derive returns a Var computed by compute from sources. compute reads the
// sources itself, in whatever order it declares them. The derived value is
// recomputed synchronously by [Derived.Refresh] or asynchronously after any
// source change until stop is closed.
func Derive[T any](stop <-chan struct{}, compute func() T, sources ...Source) *Derived[T] {
	d := &Derived[T]{
		out:     New(compute()),
		compute: compute,
		sources: sources,
	}
	d.seen = d.versions()

	for _, src := range sources {
		ch, unsubscribe := src.changed()
		go func() {
			defer unsubscribe()
			for {
				select {
				case <-stop:
					return
				case <-ch:
					d.Refresh()
				}
			}
		}()
	}
	return d
}

// Derived is a read-only Var computed from other Vars.
type Derived[T any] struct {
	out     *Var[T]
	compute func() T
	sources []Source

	mu   sync.Mutex
	seen []uint64
}

// Refresh recomputes the value if any source changed since the last
// computation. It reports whether a new value was published.
func (d *Derived[T]) Refresh() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.versions()
	if slices.Equal(now, d.seen) {
		return false
	}
	d.seen = now
	d.out.Set(d.compute())
	return true
}

// Value returns the current derived value.
func (d *Derived[T]) Value() T { return d.out.Value() }

// Get returns the current derived value and its version.
func (d *Derived[T]) Get() (T, uint64) { return d.out.Get() }

// Watch is [Var.Watch] on the derived value.
func (d *Derived[T]) Watch(done <-chan struct{}) <-chan T { return d.out.Watch(done) }

// Changed is [Var.Changed] on the derived value.
func (d *Derived[T]) Changed() (<-chan struct{}, func()) { return d.out.Changed() }

func (d *Derived[T]) version() uint64 { return d.out.version() }
func (d *Derived[T]) changed() (<-chan struct{}, func()) { return d.out.Changed() }

func (d *Derived[T]) versions() []uint64 {
	vs := make([]uint64, len(d.sources))
	for i, s := range d.sources {
		vs[i] = s.version()
	}
	return vs
}
