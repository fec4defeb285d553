package buffer

import (
	"testing"
)

func BenchmarkCircularBufferWrite(b *testing.B) {
	policies := []struct {
		name   string
		policy OverflowPolicy
	}{
		{"DropOldest", DropOldest},
		{"DropNewest", DropNewest},
	}

	for _, p := range policies {
		b.Run(p.name, func(b *testing.B) {
			buf, err := NewCircularBuffer[int](1024, WithOverflowPolicy[int](p.policy))
			if err != nil {
				b.Fatal(err)
			}
			defer func() { _ = buf.Close() }()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = buf.Write(i)
			}
		})
	}
}

func BenchmarkCircularBufferLatestValue(b *testing.B) {
	// The monitor's pattern: capacity-one cell, write then peek latest.
	buf, err := NewCircularBuffer[int](1)
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = buf.Close() }()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = buf.Write(i)
		if _, ok := buf.PeekLatest(); !ok {
			b.Fatal("expected latest value")
		}
	}
}

func BenchmarkCircularBufferReadBatch(b *testing.B) {
	buf, err := NewCircularBuffer[int](4096)
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = buf.Close() }()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range 64 {
			_ = buf.Write(j)
		}
		if got := buf.ReadBatch(64); len(got) != 64 {
			b.Fatalf("expected 64 items, got %d", len(got))
		}
	}
}
