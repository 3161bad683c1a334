package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasage-io/datasage/pkg/llms"
)

func msg(role, content string) llms.Message {
	return llms.Message{Role: role, Content: content, Timestamp: time.Now()}
}

func TestInMemory_AppendAndList(t *testing.T) {
	svc := NewInMemorySessionService()
	ctx := context.Background()

	require.NoError(t, svc.AppendMessages(ctx, "s1", []llms.Message{
		msg(llms.RoleUser, "how many orders?"),
		msg(llms.RoleAssistant, "42"),
	}))

	got, err := svc.GetMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "how many orders?", got[0].Content)
	assert.Equal(t, "42", got[1].Content)

	// Repeated reads have no side effect.
	again, err := svc.GetMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, got, again)

	count, err := svc.GetMessageCount(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInMemory_OrderingAcrossAppends(t *testing.T) {
	svc := NewInMemorySessionService()
	ctx := context.Background()

	for i, content := range []string{"a", "b", "c"} {
		require.NoError(t, svc.AppendMessages(ctx, "s1", []llms.Message{msg(llms.RoleUser, content)}))
		count, err := svc.GetMessageCount(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, i+1, count)
	}

	got, err := svc.GetMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", got[0].Content)
	assert.Equal(t, "c", got[2].Content)
}

func TestInMemory_UnknownSessionIsEmpty(t *testing.T) {
	svc := NewInMemorySessionService()

	got, err := svc.GetMessages(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)

	count, err := svc.GetMessageCount(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInMemory_ClearIsIdempotent(t *testing.T) {
	svc := NewInMemorySessionService()
	ctx := context.Background()

	require.NoError(t, svc.AppendMessages(ctx, "s1", []llms.Message{msg(llms.RoleUser, "hi")}))
	require.NoError(t, svc.ClearSession(ctx, "s1"))
	require.NoError(t, svc.ClearSession(ctx, "s1"))

	count, err := svc.GetMessageCount(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInMemory_EmptySessionID(t *testing.T) {
	svc := NewInMemorySessionService()

	assert.Error(t, svc.AppendMessages(context.Background(), "", []llms.Message{msg(llms.RoleUser, "x")}))
	_, err := svc.GetMessages(context.Background(), "")
	assert.Error(t, err)
}

func TestInMemory_ReturnedSliceIsACopy(t *testing.T) {
	svc := NewInMemorySessionService()
	ctx := context.Background()

	require.NoError(t, svc.AppendMessages(ctx, "s1", []llms.Message{msg(llms.RoleUser, "original")}))

	got, err := svc.GetMessages(ctx, "s1")
	require.NoError(t, err)
	got[0].Content = "tampered"

	fresh, err := svc.GetMessages(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", fresh[0].Content)
}
