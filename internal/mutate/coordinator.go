// Package mutate applies structural file edits (add, rename, delete)
// to the project mirror optimistically: the mirror changes first, the
// remote store is told second, and a remote failure restores the
// captured pre-operation state verbatim.
package mutate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/webgenai/genctl/internal/mirror"
)

// Remote is the slice of the API the coordinator needs
type Remote interface {
	AddFile(ctx context.Context, projectID, name, content string) error
	DeleteFile(ctx context.Context, projectID, name string) error
	RenameFile(ctx context.Context, projectID, oldName, newName string) error
}

// Coordinator runs the snapshot/apply/confirm-or-rollback protocol for
// structural file mutations against one mirror.
type Coordinator struct {
	remote Remote
	mirror *mirror.Mirror
	logger *slog.Logger
}

// NewCoordinator creates a coordinator for the given mirror
func NewCoordinator(remote Remote, m *mirror.Mirror, logger *slog.Logger) *Coordinator {
	return &Coordinator{remote: remote, mirror: m, logger: logger}
}

// AddFile creates a new file. It fails before any remote call when the
// name is already taken.
func (c *Coordinator) AddFile(ctx context.Context, name, content string) error {
	opID := uuid.New().String()
	snap := c.mirror.CaptureFileState()

	if err := c.mirror.InsertFile(mirror.File{Name: name, Content: content}); err != nil {
		return err
	}

	c.logger.Debug("optimistic add applied", "op_id", opID, "file", name)

	if err := c.remote.AddFile(ctx, c.mirror.ID(), name, content); err != nil {
		c.mirror.RestoreFileState(snap)
		c.logger.Warn("add rejected by server, rolled back", "op_id", opID, "file", name, "error", err)
		return fmt.Errorf("failed to add file %s: %w", name, err)
	}
	return nil
}

// RenameFile renames a file. It fails before any remote call when the
// destination name already exists; selection follows a renamed active
// file.
func (c *Coordinator) RenameFile(ctx context.Context, oldName, newName string) error {
	opID := uuid.New().String()
	snap := c.mirror.CaptureFileState()

	if err := c.mirror.RenameFile(oldName, newName); err != nil {
		return err
	}

	c.logger.Debug("optimistic rename applied", "op_id", opID, "from", oldName, "to", newName)

	if err := c.remote.RenameFile(ctx, c.mirror.ID(), oldName, newName); err != nil {
		c.mirror.RestoreFileState(snap)
		c.logger.Warn("rename rejected by server, rolled back", "op_id", opID, "from", oldName, "to", newName, "error", err)
		return fmt.Errorf("failed to rename %s to %s: %w", oldName, newName, err)
	}
	return nil
}

// DeleteFile removes a file. If it was the active selection, the
// selection falls back to the first remaining file.
func (c *Coordinator) DeleteFile(ctx context.Context, name string) error {
	opID := uuid.New().String()
	snap := c.mirror.CaptureFileState()

	if err := c.mirror.RemoveFile(name); err != nil {
		return err
	}

	c.logger.Debug("optimistic delete applied", "op_id", opID, "file", name)

	if err := c.remote.DeleteFile(ctx, c.mirror.ID(), name); err != nil {
		c.mirror.RestoreFileState(snap)
		c.logger.Warn("delete rejected by server, rolled back", "op_id", opID, "file", name, "error", err)
		return fmt.Errorf("failed to delete file %s: %w", name, err)
	}
	return nil
}
