package fsops

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	sgerrors "sglx-remote/errors"
	sglog "sglx-remote/log"
)

// TestSessionMarker 标记一次性测试会话：这类会话整目录拷贝，不合并进已有目标。
const TestSessionMarker = "MusterMaus"

// IsTestSession 表示 sessionID 是否为测试会话。
func IsTestSession(sessionID string) bool {
	return strings.Contains(sessionID, TestSessionMarker)
}

// CopyResult 汇总一次拷贝的文件数与字节数。
type CopyResult struct {
	Target string
	Files  int
	Bytes  int64
}

// CopySession 将录制目录拷贝到目标会话目录。
// 规则：
// - 测试会话：整棵目录树（含自身目录名）拷贝到 dest 下，目标已存在则失败
// - 其它会话：dest 必须已存在；文件内容平铺拷贝到 dest/subfolder（自动创建），保留修改时间
// 参数：
// - src: 录制目录
// - dest: 目标会话目录
// - sessionID: 会话标识
// - subfolder: 非测试会话的子目录名
// 返回：
// - CopyResult: 拷贝统计
// - error: CodeFilesystem
func CopySession(src, dest, sessionID, subfolder string) (CopyResult, error) {
	if st, err := os.Stat(src); err != nil || !st.IsDir() {
		return CopyResult{}, sgerrors.Wrap(sgerrors.CodeFilesystem, "recording directory missing: "+src, err)
	}
	var (
		res CopyResult
		err error
	)
	if IsTestSession(sessionID) {
		res, err = copyTree(src, filepath.Join(dest, filepath.Base(src)))
	} else {
		res, err = copyFlat(src, dest, subfolder)
	}
	if err != nil {
		return res, err
	}
	sglog.With(map[string]any{"src": src, "dst": res.Target, "files": res.Files, "size": humanize.IBytes(uint64(res.Bytes)), "status": "copy_ok"}).Info("录制文件拷贝完成")
	return res, nil
}

// copyTree 复制整棵目录树到 target（target 不能已存在）。
func copyTree(src, target string) (CopyResult, error) {
	res := CopyResult{Target: target}
	if _, err := os.Stat(target); err == nil {
		return res, sgerrors.New(sgerrors.CodeFilesystem, "destination already exists: "+target)
	}
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		out := filepath.Join(target, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		n, err := copyFile(p, out)
		if err != nil {
			return err
		}
		res.Files++
		res.Bytes += n
		return nil
	})
	if err != nil {
		return res, sgerrors.Wrap(sgerrors.CodeFilesystem, "copy tree failed", err)
	}
	return res, nil
}

// copyFlat 把 src 下所有文件（递归）平铺拷贝进 dest/subfolder。
func copyFlat(src, dest, subfolder string) (CopyResult, error) {
	target := filepath.Join(dest, subfolder)
	res := CopyResult{Target: target}
	if st, err := os.Stat(dest); err != nil || !st.IsDir() {
		return res, sgerrors.Wrap(sgerrors.CodeFilesystem, "session path does not exist: "+dest, err)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return res, sgerrors.Wrap(sgerrors.CodeFilesystem, "create subfolder failed", err)
	}
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		n, err := copyFile(p, filepath.Join(target, d.Name()))
		if err != nil {
			return err
		}
		res.Files++
		res.Bytes += n
		return nil
	})
	if err != nil {
		return res, sgerrors.Wrap(sgerrors.CodeFilesystem, "copy files failed", err)
	}
	return res, nil
}

// copyFile 复制单个文件并保留权限位与修改时间。
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	st, err := in.Stat()
	if err != nil {
		return 0, err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, st.Mode().Perm())
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	_ = os.Chtimes(dst, st.ModTime(), st.ModTime())
	return n, nil
}

// RemoveTree 删除录制目录（不可恢复）。
func RemoveTree(path string) error {
	if path == "" || path == string(filepath.Separator) {
		return sgerrors.New(sgerrors.CodeFilesystem, "refusing to remove "+path)
	}
	if err := os.RemoveAll(path); err != nil {
		return sgerrors.Wrap(sgerrors.CodeFilesystem, "remove recording failed", err)
	}
	return nil
}
