package valueobject

import "strings"

// Role 调用者角色
type Role string

const (
	RoleNone    Role = ""
	RoleDentist Role = "dentist"
	RoleAdmin   Role = "admin"
)

// ParseRole 解析角色字符串, 未知角色视为无角色
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleDentist:
		return RoleDentist
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleNone
	}
}

// Caller 调用者值对象（不可变）
//
// userID 为 0 表示访客。角色只来自认证层, 对话内容永远不能改变它。
type Caller struct {
	userID    int64
	role      Role
	dentistID int64
	name      string
}

// Guest 返回访客调用者
func Guest() Caller {
	return Caller{}
}

// NewCaller 创建已认证调用者
func NewCaller(userID int64, role Role, dentistID int64, name string) Caller {
	if userID <= 0 {
		return Guest()
	}
	c := Caller{userID: userID, role: role, name: name}
	if role == RoleDentist {
		c.dentistID = dentistID
	}
	return c
}

// UserID 返回用户ID, 访客为 0
func (c Caller) UserID() int64 { return c.userID }

// Role 返回角色
func (c Caller) Role() Role { return c.role }

// DentistID 返回牙医ID, 仅牙医角色有值
func (c Caller) DentistID() int64 { return c.dentistID }

// Name 返回显示名
func (c Caller) Name() string { return c.name }

// IsGuest 是否访客
func (c Caller) IsGuest() bool { return c.userID == 0 }

// IsAdmin 是否管理员
func (c Caller) IsAdmin() bool { return !c.IsGuest() && c.role == RoleAdmin }

// IsDentist 是否牙医 (必须带有有效的牙医ID)
func (c Caller) IsDentist() bool { return !c.IsGuest() && c.role == RoleDentist && c.dentistID > 0 }

// Label 返回日志用标签
func (c Caller) Label() string {
	switch {
	case c.IsGuest():
		return "guest"
	case c.role == RoleNone:
		return "user"
	default:
		return string(c.role)
	}
}
