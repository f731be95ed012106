package busy

import (
	"sync"

	"github.com/rs/zerolog"
)

// Observer receives every transition of the indicator signal.
type Observer func(visible bool)

type observerEntry struct {
	id uint64
	fn Observer
}

// observers is a registration-ordered list of callbacks.
type observers struct {
	mu     sync.Mutex
	nextID uint64
	list   []observerEntry
}

func (o *observers) add(fn Observer) (remove func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := o.nextID
	o.list = append(o.list, observerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *observers) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, e := range o.list {
		if e.id == id {
			o.list = append(o.list[:i:i], o.list[i+1:]...)
			return
		}
	}
}

// notify calls every observer with visible. A panicking observer is logged
// and does not stop the others.
func (o *observers) notify(visible bool, logger *zerolog.Logger) {
	o.mu.Lock()
	list := make([]observerEntry, len(o.list))
	copy(list, o.list)
	o.mu.Unlock()

	for _, e := range list {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Interface("panic", r).
						Bool("visible", visible).
						Msg("busy observer panicked")
				}
			}()
			e.fn(visible)
		}()
	}
}
