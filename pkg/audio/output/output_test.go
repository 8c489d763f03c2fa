// ABOUTME: Audio output interface tests
// ABOUTME: Verifies backend registration and the null backend lifecycle
package output

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Vigour-Plus-Plus/vigour-go/pkg/audio"
)

var monoFormat = audio.Format{SampleRate: 44100, Channels: 1}

func TestImplementsOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
	var _ Output = (*Malgo)(nil)
	var _ Output = (*PortAudio)(nil)
	var _ Output = (*Null)(nil)
}

func TestNewKnownBackends(t *testing.T) {
	for _, name := range []string{"oto", "malgo", "null"} {
		t.Run(name, func(t *testing.T) {
			out, err := New(name, Options{})
			if err != nil {
				t.Fatalf("New(%q) failed: %v", name, err)
			}
			if out.Name() != name {
				t.Errorf("expected name %q, got %q", name, out.Name())
			}
		})
	}
}

func TestNewDefaultBackend(t *testing.T) {
	out, err := New("", Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if out.Name() != DefaultBackend {
		t.Errorf("expected default backend %q, got %q", DefaultBackend, out.Name())
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := New("jack", Options{}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestBackendsSorted(t *testing.T) {
	names := Backends()
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("backends not sorted: %v", names)
		}
	}
}

func TestNullRendersBlocks(t *testing.T) {
	var mu sync.Mutex
	var blocks, lastLen int

	out := NewNull(Options{
		Buffer: 5 * time.Millisecond,
		Tap: func(block []float32) {
			mu.Lock()
			blocks++
			lastLen = len(block)
			mu.Unlock()
		},
	})

	var calls atomic.Int32
	err := out.Open(monoFormat, func(block []float32) {
		calls.Add(1)
		for i := range block {
			block[i] = 0.5
		}
	}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := out.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if calls.Load() == 0 {
		t.Fatal("expected render to be called")
	}

	mu.Lock()
	defer mu.Unlock()
	if blocks == 0 {
		t.Fatal("expected tap to receive blocks")
	}
	// 5ms at 44.1kHz
	if lastLen != 220 {
		t.Errorf("expected 220-frame blocks, got %d", lastLen)
	}

	// No renders after Close returns
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != after {
		t.Error("render called after Close")
	}
}

func TestNullCloseIdempotent(t *testing.T) {
	out := NewNull(Options{})
	if err := out.Close(); err != nil {
		t.Errorf("Close before Open failed: %v", err)
	}
	if err := out.Open(monoFormat, func([]float32) {}, nil); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestNullReopen(t *testing.T) {
	out := NewNull(Options{})
	for i := 0; i < 3; i++ {
		if err := out.Open(monoFormat, func([]float32) {}, nil); err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		if err := out.Close(); err != nil {
			t.Fatalf("Close %d failed: %v", i, err)
		}
	}
}

func TestNullRejectsDoubleOpen(t *testing.T) {
	out := NewNull(Options{})
	if err := out.Open(monoFormat, func([]float32) {}, nil); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer out.Close()

	if err := out.Open(monoFormat, func([]float32) {}, nil); err == nil {
		t.Error("expected second Open to fail")
	}
}

func TestOpenRejectsInvalidFormat(t *testing.T) {
	for _, out := range []Output{NewNull(Options{}), NewOto(Options{}), NewMalgo(Options{})} {
		if err := out.Open(audio.Format{SampleRate: 0, Channels: 1}, func([]float32) {}, nil); err == nil {
			t.Errorf("%s: expected error for invalid format", out.Name())
		}
	}
}

func TestOtoReadSilentWhenClosed(t *testing.T) {
	o := NewOto(Options{}).(*Oto)
	p := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	n, err := o.Read(p)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(p) {
		t.Errorf("expected %d bytes, got %d", len(p), n)
	}
	for i, b := range p {
		if b != 0 {
			t.Errorf("expected silence at byte %d, got %d", i, b)
		}
	}
}

func TestOtoReadRendersFloat32(t *testing.T) {
	o := NewOto(Options{}).(*Oto)
	render := RenderFunc(func(out []float32) {
		for i := range out {
			out[i] = 0.25
		}
	})
	o.render.Store(&render)

	p := make([]byte, 16)
	if _, err := o.Read(p); err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	for i, s := range audio.Float32FromLE(p) {
		if s != 0.25 {
			t.Errorf("sample %d: expected 0.25, got %f", i, s)
		}
	}
}

func TestOtoCloseWithoutOpen(t *testing.T) {
	if err := NewOto(Options{}).Close(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestScratchReuse(t *testing.T) {
	buf := make([]float32, 8)
	if got := scratch(buf, 4); &got[0] != &buf[0] || len(got) != 4 {
		t.Error("expected scratch to reuse capacity")
	}
	if got := scratch(buf, 16); len(got) != 16 {
		t.Errorf("expected length 16, got %d", len(got))
	}
}
