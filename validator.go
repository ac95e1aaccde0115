package eventum

import (
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin/binding"
)

// Validator 事件数据校验器，返回非 nil 表示校验失败
type Validator interface {
	Validate(p *Payload) error
}

// ValidatorFunc 函数形式的校验器
type ValidatorFunc func(p *Payload) error

// Validate 实现 Validator
func (f ValidatorFunc) Validate(p *Payload) error {
	return f(p)
}

// Struct 按结构体校验：JSON 解码到 T 后执行 binding 标签校验
//
//	type Echo struct {
//		Event   string `json:"event"`
//		Message string `json:"message" binding:"required"`
//	}
//	app.Event("echo", onEcho, eventum.Struct[Echo]())
func Struct[T any]() Validator {
	return ValidatorFunc(func(p *Payload) error {
		var v T
		return binding.JSON.BindBody(p.Raw, &v)
	})
}

// Schema 按 JSON Schema 校验整个事件对象
func Schema(schema *openapi3.Schema) Validator {
	return ValidatorFunc(func(p *Payload) error {
		return schema.VisitJSON(p.Fields, openapi3.MultiErrors())
	})
}

// SchemaJSON 从 JSON 文本加载 Schema
func SchemaJSON(data []byte) (Validator, error) {
	schema := openapi3.NewSchema()
	if err := json.Unmarshal(data, schema); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return Schema(schema), nil
}
