// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// LibraryInfo H5P 托管服务目录中的一个内容库
type LibraryInfo struct {
	MachineName  string `json:"machineName"`
	MajorVersion int    `json:"majorVersion"`
	MinorVersion int    `json:"minorVersion"`
	Runnable     bool   `json:"runnable"`
}

// Version 返回 "major.minor" 形式的版本串
func (l LibraryInfo) Version() string {
	return fmt.Sprintf("%d.%d", l.MajorVersion, l.MinorVersion)
}

// VersionMap 内容库基础名到最新 "major.minor" 版本的映射
type VersionMap map[string]string

// Spec 返回 "H5P.X major.minor" 形式的完整库标识
func (m VersionMap) Spec(machineName string) (string, bool) {
	v, ok := m[machineName]
	if !ok {
		return "", false
	}
	return machineName + " " + v, true
}

// NewerVersion 比较两个 "major.minor" 版本串，a 比 b 新时返回 true
func NewerVersion(a, b string) bool {
	amaj, amin := splitVersion(a)
	bmaj, bmin := splitVersion(b)
	if amaj != bmaj {
		return amaj > bmaj
	}
	return amin > bmin
}

func splitVersion(v string) (int, int) {
	maj, min, _ := strings.Cut(v, ".")
	a, _ := strconv.Atoi(maj)
	b, _ := strconv.Atoi(min)
	return a, b
}
