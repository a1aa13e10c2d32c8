package strap

import "splitlink-go/x/conv"

// Confidence scores a full window.
type Confidence struct {
	Majority   bool // level seen in at least Quorum readings
	Ones       int  // number of high readings
	Agreements int  // consecutive pairs with equal levels, 0..WindowSize-1
	Stable     bool // Agreements >= Quorum
}

// Evaluate scores a sequence of levels.
func Evaluate(levels [WindowSize]bool) Confidence {
	var c Confidence
	for i, l := range levels {
		if l {
			c.Ones++
		}
		if i > 0 && l == levels[i-1] {
			c.Agreements++
		}
	}
	c.Majority = c.Ones >= Quorum
	c.Stable = c.Agreements >= Quorum
	return c
}

// Window collects up to WindowSize readings. Once full, further pushes
// slide the window and drop the oldest.
type Window struct {
	buf [WindowSize]Reading
	n   int
}

func (w *Window) Push(r Reading) {
	if w.n < WindowSize {
		w.buf[w.n] = r
		w.n++
		return
	}
	copy(w.buf[:], w.buf[1:])
	w.buf[WindowSize-1] = r
}

func (w *Window) Len() int   { return w.n }
func (w *Window) Full() bool { return w.n == WindowSize }
func (w *Window) Reset()     { w.n = 0 }

// Last returns the most recent reading.
func (w *Window) Last() (Reading, bool) {
	if w.n == 0 {
		return Reading{}, false
	}
	return w.buf[w.n-1], true
}

// Levels returns the window as a fixed-size level array. Missing slots
// read low.
func (w *Window) Levels() [WindowSize]bool {
	var out [WindowSize]bool
	for i := 0; i < w.n; i++ {
		out[i] = w.buf[i].Level
	}
	return out
}

// Confidence scores the current contents. Callers should check Full first.
func (w *Window) Confidence() Confidence { return Evaluate(w.Levels()) }

// AppendBits renders the window levels as '0'/'1' characters.
func (w *Window) AppendBits(dst []byte) []byte {
	for i := 0; i < w.n; i++ {
		dst = conv.AppendBit(dst, w.buf[i].Level)
	}
	return dst
}
