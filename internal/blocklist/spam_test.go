package blocklist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpamMarks(t *testing.T) {
	marks := NewSpamMarks()
	ctx := context.Background()

	spam, err := marks.IsSpam(ctx, "9876543210")
	assert.NoError(t, err)
	assert.False(t, spam)

	marks.Mark("+91 98765 43210")

	spam, err = marks.IsSpam(ctx, "9876543210")
	assert.NoError(t, err)
	assert.True(t, spam)

	assert.True(t, marks.Seen("09876543210"), "marks match on the canonical fingerprint")
	assert.False(t, marks.Seen("+911112223334"))

	// Numbers with no digits can never be marked.
	marks.Mark("anonymous")
	assert.False(t, marks.Seen("anonymous"))
}
