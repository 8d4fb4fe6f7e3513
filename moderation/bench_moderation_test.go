package moderation

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func generatedWords(count int) []string {
	words := make([]string, count)
	for i := range words {
		words[i] = fmt.Sprintf("blacklisted%dword", i)
	}
	return words
}

func Test_Moderation_Startup_With_Large_Dictionary(t *testing.T) {
	if testing.Short() {
		t.Skip("large dictionary")
	}
	req := require.New(t)

	start := time.Now()
	mod, err := NewModerator(generatedWords(100_000), '*', logs.GetLoggerFromLevel(slog.LevelError))
	req.NoError(err)
	t.Logf("Building automaton for 100000 words: %v", time.Since(start))

	content, words := mod.Censor("hello blacklisted7word")
	req.Equal("hello ****************", content)
	req.Equal([]string{"blacklisted7word"}, words)
}

func BenchmarkModerator_Censor(b *testing.B) {
	mod, err := NewModerator(generatedWords(1_000), '*', logs.GetLoggerFromLevel(slog.LevelError))
	if err != nil {
		b.Fatal(err)
	}
	msg := "a fairly ordinary chat message with blacklisted8word in the middle of it"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mod.Censor(msg)
	}
}
