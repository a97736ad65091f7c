package repository

import "errors"

// 通用的存储层错误
var (
	// ErrNotFound 表示请求的文档未找到（或已被删除）
	ErrNotFound = errors.New("repository: document not found")
	// ErrAlreadyExists 表示 create-if-absent 语义下键已被占用
	ErrAlreadyExists = errors.New("repository: document already exists")
)

// 特定资源的错误
var (
	ErrRoomNotFound = ErrNotFound
)
