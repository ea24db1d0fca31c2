package fsops

import (
	"os"
	"path/filepath"

	sgerrors "sglx-remote/errors"
)

// FreeSpace 返回 path 所在卷的可用字节数。path 不存在时沿父目录向上查找最近的已存在目录。
func FreeSpace(path string) (uint64, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return 0, sgerrors.Wrap(sgerrors.CodeFilesystem, "resolve save path", err)
	}
	for {
		if _, err := os.Stat(p); err == nil {
			break
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	n, err := freeBytes(p)
	if err != nil {
		return 0, sgerrors.Wrap(sgerrors.CodeFilesystem, "query free space", err)
	}
	return n, nil
}
