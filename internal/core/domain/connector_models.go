// Package domain file: internal/core/domain/connector_models.go
package domain

// AuthType 枚举了实例支持的认证方式
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api_key"
)

// AuthConfig 保存实例的认证材料。
// 字段按认证方式选填：basic 使用 Username/Password，bearer 使用 Token，
// api_key 使用 Key/Header（Header 为自定义请求头名称，由实例配置，不写死）。
type AuthConfig struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
	Key      string `json:"key,omitempty"`
	Header   string `json:"header,omitempty"`
}

// Instance 代表连接器下的一个已配置端点。
// ID 在创建后不可变；删除是硬删除，不保留墓碑记录。
type Instance struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	BaseURL  string     `json:"base_url"`
	AuthType AuthType   `json:"auth_type"`
	Auth     AuthConfig `json:"auth_config"`
	Active   bool       `json:"active"`
	Tags     []string   `json:"tags,omitempty"`
}

// QueryDefinition 是连接器目录中的一条默认查询
type QueryDefinition struct {
	ID          string `json:"id"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// RateLimitHint 是连接器级别的限速建议值。
// 核心调度器不强制执行，由 HTTP 边界的中间件按需落地为令牌桶。
type RateLimitHint struct {
	RequestsPerMinute float64 `json:"requests_per_minute"`
	Burst             int     `json:"burst"`
}

// ConnectorDescriptor 描述一个已注册的连接器及其全部实例。
// 注册后身份（Name/Dialect 等）不可变，实例列表可在运行期增删改。
type ConnectorDescriptor struct {
	Name                string            `json:"name"`
	Description         string            `json:"description"`
	Dialect             string            `json:"dialect"`
	SupportsServerFilter bool             `json:"supports_server_filter"`
	RateLimit           RateLimitHint     `json:"rate_limit"`
	DefaultQueries      []QueryDefinition `json:"default_queries"`
	Instances           []Instance        `json:"instances"`
}

// FindInstance 按 ID 查找实例，未找到时返回 nil
func (d *ConnectorDescriptor) FindInstance(id string) *Instance {
	for i := range d.Instances {
		if d.Instances[i].ID == id {
			return &d.Instances[i]
		}
	}
	return nil
}
