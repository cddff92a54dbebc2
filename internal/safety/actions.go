package safety

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// The helpers below build the filesystem actions shared by several tools.

// MkdirAction creates dir and its parents.
func MkdirAction(dir string) Action {
	return Action{
		Kind:    KindMkdir,
		Summary: fmt.Sprintf("create directory %s", dir),
		Target:  dir,
		Do: func(context.Context) error {
			return os.MkdirAll(dir, 0o750)
		},
	}
}

// WriteFileAction writes content to path, replacing any existing file.
func WriteFileAction(path string, content []byte) Action {
	return Action{
		Kind:    KindWrite,
		Summary: fmt.Sprintf("write %s (%d bytes)", path, len(content)),
		Target:  path,
		Do: func(context.Context) error {
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return err
			}
			return os.WriteFile(path, content, 0o644)
		},
	}
}

// AppendFileAction appends content to path, creating it if needed.
func AppendFileAction(path string, content []byte) Action {
	return Action{
		Kind:    KindAppend,
		Summary: fmt.Sprintf("append %d bytes to %s", len(content), path),
		Target:  path,
		Do: func(context.Context) error {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return err
			}
			if _, err := f.Write(content); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}
}

// CopyFileAction copies src to dst. Used for backups before edits.
func CopyFileAction(src, dst string) Action {
	return Action{
		Kind:    KindCopy,
		Summary: fmt.Sprintf("back up %s to %s", src, dst),
		Target:  dst,
		Do: func(context.Context) error {
			return copyFile(src, dst)
		},
	}
}

// TruncateAction empties the file at path.
func TruncateAction(path, confirmWord string) Action {
	return Action{
		Kind:        KindTruncate,
		Summary:     fmt.Sprintf("permanently empty %s", path),
		Target:      path,
		ConfirmWord: confirmWord,
		Do: func(context.Context) error {
			return os.Truncate(path, 0)
		},
	}
}

// RemoveFileAction deletes a single file.
func RemoveFileAction(path, confirmWord string) Action {
	return Action{
		Kind:        KindRemove,
		Summary:     fmt.Sprintf("delete %s", path),
		Target:      path,
		ConfirmWord: confirmWord,
		Do: func(context.Context) error {
			return os.Remove(path)
		},
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
