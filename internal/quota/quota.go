// Package quota defines the contract of the per-user storage quota
// collaborator. The drive core consumes it through exactly three
// operations; balance arithmetic and persistence belong to the
// collaborator. Calls are best-effort from the core's perspective and are
// not linearized with the entry mutations that trigger them.
package quota

import "context"

// Service tracks used storage per user.
type Service interface {
	// IncreaseUsedSpace adds bytes to the user's used space.
	IncreaseUsedSpace(ctx context.Context, userID, bytes int64) error

	// DecreaseUsedSpace subtracts bytes from the user's used space.
	DecreaseUsedSpace(ctx context.Context, userID, bytes int64) error

	// GetFreeSpace returns the user's remaining bytes.
	GetFreeSpace(ctx context.Context, userID int64) (int64, error)
}
