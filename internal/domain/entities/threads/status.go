package threads

const (
	StatusTodo = "todo"

	PriorityNormal = "normal"

	ChannelChat = "chat"
)

// Title derives a thread title from its opening message.
func Title(message string) string {
	const limit = 64
	for i, r := range message {
		if r == '\n' {
			message = message[:i]
			break
		}
	}
	runes := []rune(message)
	if len(runes) > limit {
		return string(runes[:limit-3]) + "..."
	}
	return message
}
