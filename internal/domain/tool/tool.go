package tool

import (
	"fmt"
	"sort"
)

// AuthClass 工具授权类别, 仅在服务端执行, 不发送给模型
type AuthClass string

const (
	AuthGuest           AuthClass = "guest"            // 访客可用, 只读公开数据
	AuthAuthenticated   AuthClass = "authenticated"    // 需要登录
	AuthRoleScoped      AuthClass = "role_scoped"      // 牙医被收窄到自己的记录, 管理员不受限
	AuthDentistPersonal AuthClass = "dentist_personal" // 仅牙医本人 ("我的"类工具)
	AuthAdmin           AuthClass = "admin"            // 仅管理员
)

// RequiresAuth 是否需要认证身份
func (c AuthClass) RequiresAuth() bool {
	return c != AuthGuest
}

// ParamKind 参数类型
type ParamKind string

const (
	KindString  ParamKind = "string"
	KindInteger ParamKind = "integer"
	KindBoolean ParamKind = "boolean"
	KindArray   ParamKind = "array" // 字符串数组
)

// ScopeArg 标识牙医的参数名, 授权闸门会对其强制覆盖
const ScopeArg = "dentistId"

// Param 参数定义
type Param struct {
	Name        string
	Kind        ParamKind
	Description string
	Required    bool
}

// Declaration 工具声明
type Declaration struct {
	Name        string
	Description string
	Params      []Param
	Auth        AuthClass

	// Sensitive 调用成功后写入审计记录
	Sensitive bool
	// ResultKey 列表结果在信封中的键名
	ResultKey string
	// NotFound 空结果时给模型的提示
	NotFound string
	// AdminAlternative 牙医专属工具被拒绝时建议的管理员工具
	AdminAlternative string
}

// Param 按名称查找参数
func (d Declaration) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Scoped 是否需要按调用者收窄参数
func (d Declaration) Scoped() bool {
	return d.Auth == AuthRoleScoped || d.Auth == AuthDentistPersonal
}

// Schema 返回参数的 JSON Schema
func (d Declaration) Schema() map[string]interface{} {
	properties := make(map[string]interface{}, len(d.Params))
	required := make([]string, 0)

	for _, p := range d.Params {
		prop := map[string]interface{}{
			"type":        string(p.Kind),
			"description": p.Description,
		}
		if p.Kind == KindArray {
			prop["items"] = map[string]interface{}{"type": "string"}
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Definition 返回发送给模型的定义 (不含授权元数据)
func (d Declaration) Definition() Definition {
	return Definition{
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Schema(),
	}
}

// Definition 工具定义，用于传递给模型
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Catalog 静态工具目录
//
// 进程生命周期内不变, 构造后只读, 并发访问无需加锁。
type Catalog struct {
	order []string
	decls map[string]Declaration
}

// NewCatalog 创建目录, 名称重复或缺少授权类别时报错
func NewCatalog(decls ...Declaration) (*Catalog, error) {
	c := &Catalog{
		order: make([]string, 0, len(decls)),
		decls: make(map[string]Declaration, len(decls)),
	}
	for _, d := range decls {
		if d.Name == "" {
			return nil, fmt.Errorf("tool declaration without name")
		}
		if _, exists := c.decls[d.Name]; exists {
			return nil, fmt.Errorf("tool %s already registered", d.Name)
		}
		if d.Auth == "" {
			return nil, fmt.Errorf("tool %s has no auth class", d.Name)
		}
		c.order = append(c.order, d.Name)
		c.decls[d.Name] = d
	}
	return c, nil
}

// Get 获取工具声明
func (c *Catalog) Get(name string) (Declaration, bool) {
	d, ok := c.decls[name]
	return d, ok
}

// Has 检查工具是否存在
func (c *Catalog) Has(name string) bool {
	_, ok := c.decls[name]
	return ok
}

// Len 工具数量
func (c *Catalog) Len() int {
	return len(c.order)
}

// Declarations 按注册顺序返回全部声明
func (c *Catalog) Declarations() []Declaration {
	out := make([]Declaration, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.decls[name])
	}
	return out
}

// Definitions 返回发送给模型的定义列表
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.decls[name].Definition())
	}
	return out
}

// SensitiveNames 返回需审计的工具名 (排序)
func (c *Catalog) SensitiveNames() []string {
	names := make([]string, 0)
	for name, d := range c.decls {
		if d.Sensitive {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
