package dto

// LibraryVersionsResponse 内容库版本表
type LibraryVersionsResponse struct {
	// Versions 库基础名到最新 "major.minor" 版本的映射
	Versions map[string]string `json:"versions"`
}

// ContentTypeResponse 受支持的内容类型
type ContentTypeResponse struct {
	MachineName    string `json:"machine_name"`
	DisplayName    string `json:"display_name"`
	DefaultVersion string `json:"default_version"`
	Limitations    string `json:"limitations,omitempty"`
}
