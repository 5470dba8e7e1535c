package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MaxFolderDepth bounds every walk up the folder hierarchy.
const MaxFolderDepth = 64

type Folder struct {
	ID        string
	ParentID  string // empty for top-level folders
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

type File struct {
	ID        string
	FolderID  string
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

// A FolderDB stores folders and files. It returns an error wrapping ErrNotFound for unknown ids.
type FolderDB interface {
	GetFile(ctx context.Context, id string) (*File, error)
	GetFolder(ctx context.Context, id string) (*Folder, error)
	InsertFile(ctx context.Context, f *File) error     // sets f.ID
	InsertFolder(ctx context.Context, f *Folder) error // sets f.ID
}

// CreateFolder shadows FolderDB.InsertFolder.
func (c *CoreDB) CreateFolder(ctx context.Context, parentID, name, creator string) (*Folder, error) {

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name can't be empty", ErrInvalid)
	}

	if parentID != "" {
		if _, err := c.FolderDB.GetFolder(ctx, parentID); err != nil {
			return nil, fmt.Errorf("parent folder: %w", err)
		}
	}

	var folder = &Folder{
		ParentID:  parentID,
		Name:      name,
		CreatedBy: creator,
		CreatedAt: c.now(),
	}
	if err := c.FolderDB.InsertFolder(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// CreateFile stores a new file in a folder and creates an approval workflow if a folder rule applies.
// The returned workflow is nil if no rule applies.
func (c *CoreDB) CreateFile(ctx context.Context, folderID, name, creator string) (*File, *Workflow, error) {

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: file name can't be empty", ErrInvalid)
	}

	if _, err := c.FolderDB.GetFolder(ctx, folderID); err != nil {
		return nil, nil, fmt.Errorf("folder: %w", err)
	}

	var file = &File{
		FolderID:  folderID,
		Name:      name,
		CreatedBy: creator,
		CreatedAt: c.now(),
	}
	if err := c.FolderDB.InsertFile(ctx, file); err != nil {
		return nil, nil, err
	}

	workflow, err := c.AutoCreateForFile(ctx, file.ID, folderID, creator)
	if err != nil {
		return file, nil, fmt.Errorf("auto-creating workflow for file %s: %w", file.ID, err)
	}
	return file, workflow, nil
}
