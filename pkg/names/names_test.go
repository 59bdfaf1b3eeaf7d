package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "chat-app", Sanitize("Chat App"))
	assert.Equal(t, "my-service", Sanitize("my_service"))
	assert.Equal(t, "app", Sanitize("--app--"))
	assert.Equal(t, "a-b", Sanitize("a///b"))
}

func TestResource(t *testing.T) {
	assert.Equal(t, "chat-app-vpc", Resource("chat-app", "vpc"))
	assert.Equal(t, "chat-app-lb", Resource("Chat App", "lb"))
}

func TestResource_Deterministic(t *testing.T) {
	assert.Equal(t, Resource("app", "cluster"), Resource("app", "cluster"))
}

func TestIndexed(t *testing.T) {
	assert.Equal(t, "chat-app-subnet-1", Indexed("chat-app", "subnet", 1))
	assert.Equal(t, "chat-app-subnet-2", Indexed("chat-app", "subnet", 2))
}

func TestTruncation(t *testing.T) {
	long := Resource("a-very-long-application-name-indeed", "tg")
	assert.LessOrEqual(t, len(long), 32)
	assert.NotEqual(t, byte('-'), long[len(long)-1], "truncated names must not end with a hyphen")
}
