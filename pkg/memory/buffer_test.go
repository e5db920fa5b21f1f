package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evermind-ai/evermind/pkg/interfaces"
)

func TestConversationBuffer_RoundTrip(t *testing.T) {
	buffer := NewConversationBuffer()
	ctx := context.Background()

	require.NoError(t, buffer.AddMessage(ctx, "s1", interfaces.Message{Role: interfaces.MessageRoleUser, Content: "hello"}))
	require.NoError(t, buffer.AddMessage(ctx, "s1", interfaces.Message{Role: interfaces.MessageRoleAssistant, Content: "hi"}))

	messages, err := buffer.GetMessages(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "hi", messages[1].Content)
}

func TestConversationBuffer_Limit(t *testing.T) {
	buffer := NewConversationBuffer()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, buffer.AddMessage(ctx, "s1", interfaces.Message{
			Role:    interfaces.MessageRoleUser,
			Content: fmt.Sprintf("message %d", i),
		}))
	}

	messages, err := buffer.GetMessages(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "message 3", messages[0].Content)
	assert.Equal(t, "message 4", messages[1].Content)
}

func TestConversationBuffer_Clear(t *testing.T) {
	buffer := NewConversationBuffer()
	ctx := context.Background()

	require.NoError(t, buffer.AddMessage(ctx, "s1", interfaces.Message{Role: interfaces.MessageRoleUser, Content: "hello"}))
	require.NoError(t, buffer.Clear(ctx, "s1"))

	messages, err := buffer.GetMessages(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestConversationBuffer_ReturnedSliceIsACopy(t *testing.T) {
	buffer := NewConversationBuffer()
	ctx := context.Background()

	require.NoError(t, buffer.AddMessage(ctx, "s1", interfaces.Message{Role: interfaces.MessageRoleUser, Content: "original"}))

	messages, err := buffer.GetMessages(ctx, "s1", 0)
	require.NoError(t, err)
	messages[0].Content = "mutated"

	again, err := buffer.GetMessages(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Content)
}

func TestConversationBuffer_ConcurrentSessions(t *testing.T) {
	buffer := NewConversationBuffer()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			session := fmt.Sprintf("s%d", n)
			for j := 0; j < 20; j++ {
				_ = buffer.AddMessage(ctx, session, interfaces.Message{
					Role:    interfaces.MessageRoleUser,
					Content: fmt.Sprintf("m%d", j),
				})
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		messages, err := buffer.GetMessages(ctx, fmt.Sprintf("s%d", i), 0)
		require.NoError(t, err)
		assert.Len(t, messages, 20)
	}
}
