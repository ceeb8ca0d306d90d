package model

import "strings"

// User 用户表 — 对应 users
// 只做软停用（IsActive=false），不物理删除，以保留历史检测记录
type User struct {
	UserID            string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	FirstName         string  `gorm:"type:varchar(100);not null"                     json:"first_name"`
	LastName          string  `gorm:"type:varchar(100);not null"                     json:"last_name"`
	Email             string  `gorm:"type:varchar(255);not null"                     json:"email"`
	IsActive          bool    `gorm:"not null;default:true"                          json:"is_active"`
	IsAdmin           bool    `gorm:"not null;default:false"                         json:"is_admin"`
	IsManager         bool    `gorm:"not null;default:false"                         json:"is_manager"`
	ExemptFromTesting bool    `gorm:"not null;default:false"                         json:"exempt_from_testing"`
	ManagerID         *string `gorm:"type:uuid"                                      json:"manager_id,omitempty"` // user → manager 索引，不做对象嵌套
	ManagerEmail      *string `gorm:"type:varchar(255)"                              json:"manager_email,omitempty"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// FullName 名 + 姓
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NotifyAddress 经理通知邮箱；未设置或为空串时返回 false
func (u *User) NotifyAddress() (string, bool) {
	if u.ManagerEmail == nil {
		return "", false
	}
	addr := strings.TrimSpace(*u.ManagerEmail)
	return addr, addr != ""
}
