package planner

import (
	"fmt"
	"path"
	"strings"
)

type Action string

const (
	ActionUpload Action = "upload"
	ActionDelete Action = "delete"
)

// Item is one unit of work. Its identity is Name, the remote object name.
type Item struct {
	Action    Action
	LocalPath string
	Name      string
	Size      int64
}

// NewUploadItem describes a local file to store under name.
func NewUploadItem(localPath, name string, size int64) (Item, error) {
	if localPath == "" {
		return Item{}, fmt.Errorf("upload item %q: local path cannot be empty", name)
	}
	if err := validateName(name); err != nil {
		return Item{}, err
	}
	if size < 0 {
		return Item{}, fmt.Errorf("upload item %q: negative size %d", name, size)
	}
	return Item{Action: ActionUpload, LocalPath: localPath, Name: name, Size: size}, nil
}

// NewDeleteItem describes a remote object to remove. Any non-empty remote
// name is accepted.
func NewDeleteItem(name string) (Item, error) {
	if name == "" {
		return Item{}, fmt.Errorf("object name cannot be empty")
	}
	return Item{Action: ActionDelete, Name: name}, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("object name cannot be empty")
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("object name %q must be relative", name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return fmt.Errorf("object name %q escapes the source root", name)
		}
	}
	if path.Clean(name) == "." {
		return fmt.Errorf("object name %q is not a file", name)
	}
	return nil
}
