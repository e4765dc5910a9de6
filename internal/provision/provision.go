// Package provision creates and maintains the external grouping resources
// tied to a registered image: a discussion topic in the output forum and a
// dedicated broadcast channel. Both operations are independently failable;
// the registry proceeds with whatever succeeded.
package provision

import "context"

// Provisioner is the side-effect surface the registry depends on. IDs travel
// as strings because the ledger stores every cell as text.
type Provisioner interface {
	// CreateDiscussionTopic creates a forum topic under the parent chat and
	// returns its id. Any failure is returned; the caller records an unset
	// topic and continues.
	CreateDiscussionTopic(ctx context.Context, name string, parentChatID int64) (string, error)

	// CreateDedicatedChannel creates a channel named after the image. The
	// avatar upload (when avatarPath != "") and the folder attachment (when
	// folderName != "") are best-effort sub-steps: failures there are logged
	// and swallowed, they never unwind channel creation.
	CreateDedicatedChannel(ctx context.Context, name, avatarPath, folderName string) (string, error)

	// UpdateChannel renames the channel unless newName equals previousName
	// (title edits are rate-limited upstream) and always refreshes the
	// avatar when avatarPath is supplied.
	UpdateChannel(ctx context.Context, channelID, newName, avatarPath, previousName string) error
}
