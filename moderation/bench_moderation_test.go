package moderation

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/mama165/sdk-go/logs"
)

// BenchmarkModerator_Censor measures a message scan against a large dictionary.
func BenchmarkModerator_Censor(b *testing.B) {
	words := make([]string, 0, 10_000)
	for i := 0; i < 10_000; i++ {
		words = append(words, fmt.Sprintf("forbidden%05d", i))
	}
	mod, err := NewModerator(words, replacementChar, logs.GetLoggerFromLevel(slog.LevelError))
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("a perfectly normal sentence with forbidden00042 inside ", 20)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = mod.Censor(text)
	}
}
