package benchmarks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/docflow/pkg/docflow"
	"github.com/randalmurphal/docflow/pkg/docflow/checkpoint"
)

// contentState is a state carrying roughly size bytes of merged content.
func contentState(size int) docflow.State {
	s := docflow.NewState(docflow.OutputMindMap, docflow.Request{})
	s.RawContent = strings.Repeat("lorem ipsum dolor sit amet ", size/27+1)[:size]
	s.StructuredContent = map[string]any{"title": "Bench", "markdown": s.RawContent}
	s.Metadata.SourceCount = 3
	return s
}

func benchmarkStore(b *testing.B, open func(b *testing.B) checkpoint.Store) {
	ctx := context.Background()
	for _, size := range []int{1 << 10, 64 << 10, 1 << 20} {
		state := contentState(size)

		b.Run(fmt.Sprintf("Save/%dKB", size>>10), func(b *testing.B) {
			mgr := checkpoint.NewManager(open(b))
			defer mgr.Close()
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = mgr.Save(ctx, "session-1", "", state)
			}
		})

		b.Run(fmt.Sprintf("Load/%dKB", size>>10), func(b *testing.B) {
			mgr := checkpoint.NewManager(open(b))
			defer mgr.Close()
			if err := mgr.Save(ctx, "session-1", "", state); err != nil {
				b.Fatal(err)
			}
			b.SetBytes(int64(size))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = mgr.Load(ctx, "session-1", "")
			}
		})
	}
}

func BenchmarkMemoryStore(b *testing.B) {
	benchmarkStore(b, func(*testing.B) checkpoint.Store { return checkpoint.NewMemoryStore() })
}

func BenchmarkSQLiteStore(b *testing.B) {
	benchmarkStore(b, func(b *testing.B) checkpoint.Store {
		store, err := checkpoint.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
		if err != nil {
			b.Fatal(err)
		}
		return store
	})
}

func BenchmarkBadgerStore(b *testing.B) {
	benchmarkStore(b, func(b *testing.B) checkpoint.Store {
		store, err := checkpoint.NewBadgerStore(b.TempDir(), time.Hour)
		if err != nil {
			b.Fatal(err)
		}
		return store
	})
}

func BenchmarkSnapshot_Marshal(b *testing.B) {
	snap := checkpoint.FromState(contentState(64 << 10))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = snap.Marshal()
	}
}
