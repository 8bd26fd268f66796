package audio

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

const testRate = beep.SampleRate(1000)

// constBuffer returns n frames of value 1 on both channels
func constBuffer(n int) *beep.Buffer {
	buf := beep.NewBuffer(beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2})
	left := n
	buf.Append(beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if left == 0 {
			return 0, false
		}
		k := min(left, len(samples))
		for i := 0; i < k; i++ {
			samples[i] = [2]float64{1, 1}
		}
		left -= k
		return k, true
	}))
	return buf
}

func TestMixerStartsOnExactFrame(t *testing.T) {
	bank := NewBank(testRate)
	bank.Set(0, constBuffer(10))
	m := NewMixer(bank)

	var completed []Handle
	h, err := m.Schedule(Event{FireTime: 0.1, SoundID: 0, Gain: 4}, func(h Handle) {
		completed = append(completed, h)
	})
	if err != nil {
		t.Fatal(err)
	}

	// render in odd chunk sizes to make sure chunk boundaries don't matter
	out := make([][2]float64, 0, 256)
	for _, n := range []int{37, 64, 3, 152} {
		chunk := make([][2]float64, n)
		m.Stream(chunk)
		out = append(out, chunk...)
	}

	for i, s := range out {
		want := 0.0
		if i >= 100 && i < 110 {
			want = 4
		}
		if math.Abs(s[0]-want) > 1e-3 || math.Abs(s[1]-want) > 1e-3 {
			t.Fatalf("frame %d = %v, want %v", i, s, want)
		}
	}
	if len(completed) != 1 || completed[0] != h {
		t.Errorf("completion callbacks = %d", len(completed))
	}
	if !h.Done() {
		t.Error("handle not done")
	}
	if got := m.Now(); got != 0.256 {
		t.Errorf("clock = %v, want 0.256", got)
	}
}

func TestMixerUnknownSound(t *testing.T) {
	m := NewMixer(NewBank(testRate))
	h, err := m.Schedule(Event{SoundID: 2, Gain: 1}, nil)
	if !errors.Is(err, ErrUnknownSound) || h != nil {
		t.Errorf("got (%v, %v), want ErrUnknownSound", h, err)
	}
	if m.Voices() != 0 {
		t.Error("unknown sound was queued")
	}
}

func TestSessionStopAllSilencesFutureVoices(t *testing.T) {
	bank := NewBank(testRate)
	bank.Set(1, constBuffer(50))
	m := NewMixer(bank)
	s := NewSession()

	for _, at := range []float64{0, 0.02, 0.5} {
		h, err := m.Schedule(Event{FireTime: at, SoundID: 1, Gain: 1}, s.Remove)
		if err != nil {
			t.Fatal(err)
		}
		s.Add(h)
	}

	buf := make([][2]float64, 10)
	m.Stream(buf)
	if s.Len() != 3 {
		t.Fatalf("active = %d, want 3", s.Len())
	}

	if n := s.StopAll(); n != 3 {
		t.Errorf("StopAll stopped %d, want 3", n)
	}
	if n := s.StopAll(); n != 0 {
		t.Errorf("second StopAll stopped %d", n)
	}

	out := make([][2]float64, 1000)
	m.Stream(out)
	for i, f := range out {
		if f != [2]float64{} {
			t.Fatalf("frame %d still sounding: %v", i, f)
		}
	}
	if m.Voices() != 0 {
		t.Errorf("mixer kept %d voices", m.Voices())
	}
}

func TestSessionDropsCompletedHandle(t *testing.T) {
	s := NewSession()
	h := &Voice{}
	h.Stop()
	s.Add(h)
	if s.Len() != 0 {
		t.Errorf("completed handle tracked")
	}
}

func TestBankLoad(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "hi.wav")

	f, err := os.Create(good)
	if err != nil {
		t.Fatal(err)
	}
	// written at 2x the bank rate to exercise resampling
	format := beep.Format{SampleRate: testRate * 2, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Take(200, constBuffer(200).Streamer(0, 200)), format); err != nil {
		t.Fatal(err)
	}
	f.Close()

	bank := NewBank(testRate)
	err = bank.Load([]string{good, filepath.Join(dir, "missing.wav")})
	if err == nil {
		t.Error("expected error for missing file")
	}
	if bank.Loaded() != 1 {
		t.Errorf("Loaded = %d, want 1", bank.Loaded())
	}
	buf, ok := bank.Buffer(0)
	if !ok {
		t.Fatal("sound 0 not loaded")
	}
	if n := buf.Len(); n < 90 || n > 110 {
		t.Errorf("resampled length = %d, want ~100", n)
	}
	if _, ok := bank.Buffer(1); ok {
		t.Error("failed sound has a buffer")
	}
}

func TestBankLoadAsync(t *testing.T) {
	bank := NewBank(testRate)
	done := make(chan error, 1)
	bank.LoadAsync([]string{"/nonexistent/sound.wav"}, func(err error) { done <- err })
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected load error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("LoadAsync never finished")
	}
}

func TestSynthesizedClicks(t *testing.T) {
	bank := NewBank(testRate * 44)
	bank.Synthesize(DefaultClicks)
	if bank.Loaded() != len(DefaultClicks) {
		t.Fatalf("Loaded = %d", bank.Loaded())
	}
	buf, _ := bank.Buffer(0)
	if want := int(0.05 * float64(testRate*44)); buf.Len() != want {
		t.Errorf("click length = %d, want %d", buf.Len(), want)
	}
}

func TestHeadlessAdvancesClock(t *testing.T) {
	m := NewMixer(NewBank(testRate))
	h := NewHeadless(testRate)
	if err := h.Start(m); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if m.Now() <= 0 {
		t.Errorf("clock did not advance")
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

type fakeSink struct {
	err     error
	handles []*Voice
	onDone  []func(Handle)
}

func (f *fakeSink) Schedule(ev Event, onDone func(Handle)) (Handle, error) {
	if f.err != nil {
		return nil, f.err
	}
	v := &Voice{}
	f.handles = append(f.handles, v)
	f.onDone = append(f.onDone, onDone)
	return v, nil
}

func TestTee(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{err: ErrUnknownSound}
	done := 0
	h, err := Tee(a, b).Schedule(Event{}, func(Handle) { done++ })
	if err != nil {
		t.Fatal(err)
	}
	if h.Done() {
		t.Error("done before children")
	}
	a.handles[0].done.Store(true)
	a.onDone[0](a.handles[0])
	if done != 1 || !h.Done() {
		t.Errorf("done = %d, Done() = %v", done, h.Done())
	}

	if _, err := Tee(b, b).Schedule(Event{}, nil); !errors.Is(err, ErrUnknownSound) {
		t.Errorf("all failing: err = %v", err)
	}
}

func TestTeeStop(t *testing.T) {
	a, c := &fakeSink{}, &fakeSink{}
	h, err := Tee(a, c).Schedule(Event{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	h.Stop()
	if !a.handles[0].Done() || !c.handles[0].Done() || !h.Done() {
		t.Error("Stop did not reach every child")
	}
}
