package session

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/google/renameio/v2"

	sgerrors "sglx-remote/errors"
)

// PendingCopyEntry 是一条待拷贝记录。
type PendingCopyEntry struct {
	SessionID       string `json:"session_id"`
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path"`
	Compressed      bool   `json:"compressed"`
}

// Store 把待拷贝队列持久化为 JSON 文件，agent 重启后可恢复。
type Store struct {
	path string
}

// NewStore 创建队列存储；path 为空时返回 nil（不持久化）。
func NewStore(path string) *Store {
	if path == "" {
		return nil
	}
	return &Store{path: path}
}

// Path 返回存储文件路径。
func (s *Store) Path() string { return s.path }

// Load 读取队列；文件不存在视为空队列。
func (s *Store) Load() ([]PendingCopyEntry, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, sgerrors.Wrap(sgerrors.CodeFilesystem, "read copy queue", err)
	}
	var entries []PendingCopyEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, sgerrors.Wrap(sgerrors.CodeFilesystem, "parse copy queue", err)
	}
	return entries, nil
}

// Save 原子替换队列文件（写临时文件 + fsync + rename）。
func (s *Store) Save(entries []PendingCopyEntry) error {
	if entries == nil {
		entries = []PendingCopyEntry{}
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return sgerrors.Wrap(sgerrors.CodeInternal, "encode copy queue", err)
	}
	if err := renameio.WriteFile(s.path, append(b, '\n'), 0o644); err != nil {
		return sgerrors.Wrap(sgerrors.CodeFilesystem, "write copy queue", err)
	}
	return nil
}
