package capture

import (
	"math"
	"time"
)

// noiseFloor keeps the speech threshold above electrical hum on quiet inputs.
const noiseFloor = 150.0

func rms(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// calibrator observes ambient noise and derives a speech onset threshold.
type calibrator struct {
	sum  float64
	n    int
	gain float64
}

func newCalibrator(gain float64) *calibrator {
	if gain <= 1 {
		gain = 1.8
	}
	return &calibrator{gain: gain}
}

func (c *calibrator) observe(frame []int16) {
	c.sum += rms(frame)
	c.n++
}

func (c *calibrator) threshold() float64 {
	if c.n == 0 {
		return noiseFloor
	}
	t := (c.sum / float64(c.n)) * c.gain
	if t < noiseFloor {
		t = noiseFloor
	}
	return t
}

type endpointerState int

const (
	stateWaiting endpointerState = iota
	stateRecording
)

// endpointer decides, frame by frame, when speech starts and ends. It waits
// for onset up to timeout and for completion up to phraseLimit (zero means
// unbounded), ending a phrase after trailingSilence of quiet.
type endpointer struct {
	threshold       float64
	frameDur        time.Duration
	timeout         time.Duration
	phraseLimit     time.Duration
	trailingSilence time.Duration

	state  endpointerState
	waited time.Duration
	spoken time.Duration
	silent time.Duration
}

func newEndpointer(threshold float64, frameDur, timeout, phraseLimit, trailingSilence time.Duration) *endpointer {
	return &endpointer{
		threshold:       threshold,
		frameDur:        frameDur,
		timeout:         timeout,
		phraseLimit:     phraseLimit,
		trailingSilence: trailingSilence,
	}
}

// feed consumes one frame. keep reports whether the frame belongs to the
// phrase, done whether capture should stop. A timeout before speech onset
// returns ErrTimeout.
func (e *endpointer) feed(frame []int16) (keep, done bool, err error) {
	level := rms(frame)

	switch e.state {
	case stateWaiting:
		if level >= e.threshold {
			e.state = stateRecording
			e.spoken = e.frameDur
			return true, false, nil
		}
		e.waited += e.frameDur
		if e.waited >= e.timeout {
			return false, true, ErrTimeout
		}
		return false, false, nil

	default: // stateRecording
		e.spoken += e.frameDur
		if level >= e.threshold {
			e.silent = 0
		} else {
			e.silent += e.frameDur
		}
		if e.silent >= e.trailingSilence {
			return true, true, nil
		}
		if e.phraseLimit > 0 && e.spoken >= e.phraseLimit {
			return true, true, nil
		}
		return true, false, nil
	}
}
