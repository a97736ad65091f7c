package repository

import "context"

// QuestionRequest 描述一次题目生成请求。
type QuestionRequest struct {
	Count    int
	Category string
	Language string
}

// QuestionProvider 是外部文本生成服务的不透明接口。
// 返回值可能是格式不定的原始文本（JSON 数组、代码块包裹、按行分隔等），
// 由 service 层的归一化管线做防御性解析；调用也可能直接失败。
type QuestionProvider interface {
	Generate(ctx context.Context, req QuestionRequest) (string, error)
}
