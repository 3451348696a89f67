package dynvar

import (
	"fmt"
	"testing"
)

func BenchmarkOverlaySingleVariable(b *testing.B) {
	v := New("bench", 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := v.Overlay(i, func() error {
			_ = v.Get()
			return nil
		}); err != nil {
			b.Fatalf("overlay: %v", err)
		}
	}
}

func BenchmarkOverlayTenVariables(b *testing.B) {
	bindings := make([]Binding, 10)
	vars := make([]*Var[int], 10)
	for i := 0; i < 10; i++ {
		vars[i] = New(fmt.Sprintf("bench_%d", i), i)
		bindings[i] = Bind(vars[i], i*100)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := Overlay(bindings, func() error {
			_ = vars[9].Get()
			return nil
		}); err != nil {
			b.Fatalf("overlay: %v", err)
		}
	}
}

func BenchmarkOverlayWithTrace(b *testing.B) {
	v := New("bench", 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		trace := NewTrace()
		if err := v.Overlay(i, func() error {
			return nil
		}, WithTrace(trace)); err != nil {
			b.Fatalf("overlay: %v", err)
		}
	}
}
