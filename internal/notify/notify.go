// Package notify is the user-facing reporting surface: ephemeral replies to
// submissions, the in-place-edited batch progress message, and delivery of
// rendered videos into forum topics.
package notify

// Notifier abstracts the messaging side so registry/batch logic can be
// tested without a bot. Thread ids double as reply targets: replying to a
// forum topic's root message posts into that topic.
type Notifier interface {
	// Reply posts a persistent reply (operator command responses).
	Reply(chatID int64, replyTo int, text string) error

	// ReplyEphemeral posts a reply and deletes it after a short delay.
	// Best-effort; failures are logged, not returned.
	ReplyEphemeral(chatID int64, replyTo int, text string)

	// Send posts into a thread and returns the message id for later edits.
	Send(chatID int64, threadID int, text string) (int, error)

	// Edit rewrites a previously sent message in place.
	Edit(chatID int64, messageID int, text string) error

	// SendVideo uploads a rendered file into a thread with a caption.
	SendVideo(chatID int64, threadID int, path, caption string) error
}
