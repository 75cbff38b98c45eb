package channels

import (
	"strings"
	"testing"
)

func TestChunkTextShort(t *testing.T) {
	chunks := chunkText("hello", 4096)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("got %v", chunks)
	}
}

func TestChunkTextSplitsOnLines(t *testing.T) {
	text := strings.Repeat("0123456789\n", 3) + "tail"
	chunks := chunkText(text, 25)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	for i, c := range chunks {
		if len([]rune(c)) > 25 {
			t.Errorf("chunk %d exceeds limit: %q", i, c)
		}
	}
	if joined := strings.Join(chunks, "\n"); joined != strings.TrimRight(text, "\n") && joined != text {
		t.Errorf("content lost:\n got: %q\nfrom: %q", joined, text)
	}
}

func TestChunkTextHardSplitsLongLine(t *testing.T) {
	text := strings.Repeat("x", 100)
	chunks := chunkText(text, 40)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Error("hard split lost content")
	}
}

func TestChunkTextEmpty(t *testing.T) {
	chunks := chunkText("", 10)
	if len(chunks) != 1 || chunks[0] != "" {
		t.Errorf("got %v", chunks)
	}
}
