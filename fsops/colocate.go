package fsops

import "path/filepath"

// Colocated 判断 agent 能否直接访问目标路径（与采集机共享文件系统）。
// enabled 为 false 表示部署上不共享文件系统，此时所有拷贝/清理都被拒绝；
// 否则要求目标是本机可解析的绝对路径。
func Colocated(dest string, enabled bool) bool {
	if !enabled || dest == "" {
		return false
	}
	return filepath.IsAbs(dest)
}
