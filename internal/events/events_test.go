package events

import (
	"testing"
	"time"

	. "github.com/franela/goblin"
)

func TestNewBus(t *testing.T) {
	g := Goblin(t)
	bus := NewBus()

	g.Describe("NewBus", func() {
		g.It("starts with no listeners", func() {
			g.Assert(bus).IsNotNil("Bus expected to not be nil")
			g.Assert(len(bus.listeners)).IsZero()
		})
	})
}

func TestBus_OnOff(t *testing.T) {
	g := Goblin(t)

	g.Describe("On/Off", func() {
		g.It("registers and unregisters a listener", func() {
			bus := NewBus()
			listener := make(Listener, 1)

			bus.On(listener)
			g.Assert(len(bus.listeners)).Equal(1)

			bus.Off(listener)
			g.Assert(len(bus.listeners)).Equal(0)
		})

		g.It("only unregisters the matching listener", func() {
			bus := NewBus()
			l1 := make(Listener, 1)
			l2 := make(Listener, 1)
			l3 := make(Listener, 1)

			bus.On(l1)
			bus.On(l2)
			bus.On(l3)
			g.Assert(len(bus.listeners)).Equal(3)

			bus.Off(l1)
			bus.Off(l3)
			g.Assert(len(bus.listeners)).Equal(1)

			if bus.listeners[0] != l2 {
				g.Fail("wrong listener unregistered")
			}
		})
	})
}

func TestBus_Publish(t *testing.T) {
	g := Goblin(t)

	g.Describe("Publish", func() {
		g.It("delivers the event to a single listener", func() {
			bus := NewBus()
			listener := make(Listener, 1)
			bus.On(listener)

			bus.Publish(Warning, "disk almost full")

			select {
			case e := <-listener:
				g.Assert(e.Kind).Equal(Warning)
				g.Assert(e.Data).Equal("disk almost full")
			case <-time.After(time.Second):
				g.Fail("listener did not receive event in time")
			}
		})

		g.It("delivers the event to every listener", func() {
			bus := NewBus()
			l1 := make(Listener, 1)
			l2 := make(Listener, 1)
			bus.On(l1)
			bus.On(l2)

			bus.Publish(TotalBytesChanged, int64(4096))

			for _, l := range []Listener{l1, l2} {
				select {
				case e := <-l:
					g.Assert(e.Kind).Equal(TotalBytesChanged)
					g.Assert(e.Data).Equal(int64(4096))
				case <-time.After(time.Second):
					g.Fail("a listener did not receive the event in time")
				}
			}
		})

		g.It("is a no-op with no listeners", func() {
			bus := NewBus()
			bus.Publish(Logging, "hello")
		})
	})
}

func TestBus_Destroy(t *testing.T) {
	g := Goblin(t)

	g.Describe("Destroy", func() {
		g.It("closes all listener channels", func() {
			bus := NewBus()
			listener := make(Listener)
			bus.On(listener)

			bus.Destroy()

			_, ok := <-listener
			g.Assert(ok).IsFalse()
			g.Assert(len(bus.listeners)).IsZero()
		})
	})
}
