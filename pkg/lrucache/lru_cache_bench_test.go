package lrucache

import (
	"testing"
)

func BenchmarkReplacer_Insert(b *testing.B) {
	r := New[int]()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		r.Insert(i % 1000)
	}
}

func BenchmarkReplacer_InsertVictimSteadyState(b *testing.B) {
	r := New[int]()
	for i := 0; i < 1000; i++ {
		r.Insert(i)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		r.Victim()
		r.Insert(i + 1000)
	}
}

func BenchmarkReplacer_Erase(b *testing.B) {
	r := New[int]()
	for i := 0; i < b.N; i++ {
		r.Insert(i)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		r.Erase(i)
	}
}
