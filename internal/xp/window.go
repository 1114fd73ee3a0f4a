package xp

// Window is byte access to the memory shared with the XP.
type Window interface {
	Load8(off int) uint8
	Store8(off int, v uint8)
	CopyIn(off int, p []byte)
}

// memWindow is a Window over a mapped region. Loads are kept out of line so
// a polling loop reads the hardware on every pass.
type memWindow struct {
	mem []byte
}

func newMemWindow(mem []byte) *memWindow { return &memWindow{mem: mem} }

//go:noinline
func (w *memWindow) Load8(off int) uint8 { return w.mem[off] }

//go:noinline
func (w *memWindow) Store8(off int, v uint8) { w.mem[off] = v }

func (w *memWindow) CopyIn(off int, p []byte) { copy(w.mem[off:], p) }
