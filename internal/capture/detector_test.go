package capture

import (
	"errors"
	"testing"
	"time"
)

func frame(amplitude int16, n int) []int16 {
	f := make([]int16, n)
	for i := range f {
		if i%2 == 0 {
			f[i] = amplitude
		} else {
			f[i] = -amplitude
		}
	}
	return f
}

func newTestEndpointer(phraseLimit time.Duration) *endpointer {
	return newEndpointer(500, 20*time.Millisecond, 200*time.Millisecond, phraseLimit, 60*time.Millisecond)
}

func TestEndpointerTimesOutWithoutSpeech(t *testing.T) {
	ep := newTestEndpointer(0)
	quiet := frame(10, 320)

	for i := 0; i < 9; i++ {
		keep, done, err := ep.feed(quiet)
		if keep || done || err != nil {
			t.Fatalf("frame %d: unexpected state keep=%v done=%v err=%v", i, keep, done, err)
		}
	}
	_, done, err := ep.feed(quiet)
	if !done || !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got done=%v err=%v", done, err)
	}
}

func TestEndpointerEndsPhraseOnTrailingSilence(t *testing.T) {
	ep := newTestEndpointer(0)
	loud := frame(2000, 320)
	quiet := frame(10, 320)

	keep, done, err := ep.feed(loud)
	if !keep || done || err != nil {
		t.Fatalf("expected onset, got keep=%v done=%v err=%v", keep, done, err)
	}
	for i := 0; i < 2; i++ {
		if _, done, _ := ep.feed(quiet); done {
			t.Fatalf("phrase ended too early at silent frame %d", i)
		}
	}
	keep, done, err = ep.feed(quiet)
	if !keep || !done || err != nil {
		t.Fatalf("expected phrase end, got keep=%v done=%v err=%v", keep, done, err)
	}
}

func TestEndpointerHonorsPhraseLimit(t *testing.T) {
	ep := newTestEndpointer(100 * time.Millisecond)
	loud := frame(2000, 320)

	var done bool
	var frames int
	for !done {
		frames++
		if frames > 20 {
			t.Fatal("phrase limit never reached")
		}
		_, done, _ = ep.feed(loud)
	}
	if frames != 5 {
		t.Fatalf("expected phrase to end after 5 frames, got %d", frames)
	}
}

func TestEndpointerSpeechResetsSilence(t *testing.T) {
	ep := newTestEndpointer(0)
	loud := frame(2000, 320)
	quiet := frame(10, 320)

	ep.feed(loud)
	ep.feed(quiet)
	ep.feed(quiet)
	ep.feed(loud) // silence counter resets
	for i := 0; i < 2; i++ {
		if _, done, _ := ep.feed(quiet); done {
			t.Fatalf("phrase ended too early after silence reset, frame %d", i)
		}
	}
	if _, done, _ := ep.feed(quiet); !done {
		t.Fatal("expected phrase end after renewed trailing silence")
	}
}

func TestCalibratorAppliesGainAndFloor(t *testing.T) {
	cal := newCalibrator(2.0)
	cal.observe(frame(1000, 320))
	if got := cal.threshold(); got <= 1000 {
		t.Fatalf("expected threshold above ambient level, got %f", got)
	}

	quietCal := newCalibrator(2.0)
	quietCal.observe(frame(1, 320))
	if got := quietCal.threshold(); got != noiseFloor {
		t.Fatalf("expected noise floor on silent input, got %f", got)
	}
}
