package ipmap

import (
	"math/rand"
	"testing"
)

// benchEntries builds a deterministic set of pseudo-random prefixes.
func benchEntries(n int) []Prefix {
	rng := rand.New(rand.NewSource(44))
	entries := make([]Prefix, 0, n)
	seen := map[Prefix]bool{}
	for len(entries) < n {
		bits := 8 + rng.Intn(25)
		addr := rng.Uint32() &^ mask32(32-bits)
		p := Prefix{addr, bits}
		if seen[p] {
			continue
		}
		seen[p] = true
		entries = append(entries, p)
	}
	return entries
}

func benchMap(entries []Prefix) *Map[int] {
	m := New[int]()
	for i, p := range entries {
		m.Insert(p.Addr, p.Bits, i)
	}
	return m
}

func BenchmarkInsert(b *testing.B) {
	entries := benchEntries(1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := New[int]()
		for j, p := range entries {
			m.Insert(p.Addr, p.Bits, j)
		}
	}
}

func BenchmarkFind(b *testing.B) {
	entries := benchEntries(1024)
	m := benchMap(entries)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := entries[i%len(entries)]
		m.Find(p.Addr, p.Bits)
	}
}

func BenchmarkNearest(b *testing.B) {
	entries := benchEntries(1024)
	m := benchMap(entries)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Nearest(entries[i%len(entries)].Addr, 32)
	}
}

func BenchmarkInsertRemove(b *testing.B) {
	entries := benchEntries(1024)
	m := benchMap(entries)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := entries[i%len(entries)]
		m.Remove(p.Addr, p.Bits)
		m.Insert(p.Addr, p.Bits, i)
	}
}

func BenchmarkRevBits(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RevBits(uint32(i))
	}
}
