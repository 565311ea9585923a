package publish

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBuffer_KeepsOnlyLastMaxLen(t *testing.T) {
	tb := &tailBuffer{maxLen: 10}
	_, _ = tb.Write([]byte("0123456789"))
	_, _ = tb.Write([]byte("abcde"))
	assert.Equal(t, "56789abcde", tb.String())
	assert.LessOrEqual(t, tb.buf.Len(), 10)
}

func TestClipLines_LeavesShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "short", clipLines("short"))
}

func TestClipLines_TruncatesLongStringFromTheFront(t *testing.T) {
	s := strings.Repeat("x", 5000)
	out := clipLines(s)
	assert.True(t, strings.HasPrefix(out, "…"))
	assert.LessOrEqual(t, len(out), 2000+len("…"))
}
