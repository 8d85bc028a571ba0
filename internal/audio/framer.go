package audio

// Framer cuts a stream of samples of arbitrary chunk sizes into frames of a fixed length.
type Framer struct {
	size int
	buf  []int16
}

func NewFramer(size int) *Framer {
	if size <= 0 {
		panic("audio: frame size must be positive")
	}
	return &Framer{size: size, buf: make([]int16, 0, size)}
}

// Size is the frame length in samples.
func (f *Framer) Size() int { return f.size }

// Push appends samples and returns every frame completed by them, in order. Returned
// frames do not alias the framer's buffer.
func (f *Framer) Push(samples []int16) [][]int16 {
	var frames [][]int16
	for len(samples) > 0 {
		n := f.size - len(f.buf)
		if n > len(samples) {
			n = len(samples)
		}
		f.buf = append(f.buf, samples[:n]...)
		samples = samples[n:]
		if len(f.buf) == f.size {
			frames = append(frames, f.buf)
			f.buf = make([]int16, 0, f.size)
		}
	}
	return frames
}

// Pending is the number of buffered samples not yet part of a full frame.
func (f *Framer) Pending() int { return len(f.buf) }

// Drain returns the buffered partial frame padded with silence to full length, or nil
// when nothing is buffered. The framer is empty afterwards.
func (f *Framer) Drain() []int16 {
	if len(f.buf) == 0 {
		return nil
	}
	frame := make([]int16, f.size)
	copy(frame, f.buf)
	f.buf = f.buf[:0]
	return frame
}
