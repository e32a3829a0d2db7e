package models

import (
	"time"

	"gorm.io/gorm"
)

// Role 用户角色
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
	RoleMentor  Role = "mentor"
)

// Valid 判断角色是否在枚举内
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin, RoleMentor:
		return true
	}
	return false
}

// User 用户账号模型
// email 是对外唯一标识，ID 是内部不透明标识
type User struct {
	gorm.Model
	Username  string     `gorm:"size:50;not null;unique" json:"username"`
	Email     string     `gorm:"size:100;not null;unique" json:"email"`
	Password  string     `gorm:"size:255;not null" json:"-"`
	Role      Role       `gorm:"size:20;default:'student'" json:"role"`
	LastLogin *time.Time `json:"lastLogin"`
}

// CredentialRequest 用户登录请求
type CredentialRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// RegistrationRequest 用户注册请求
type RegistrationRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     Role   `json:"role"`
}

// UserResponse 用户响应
type UserResponse struct {
	ID        uint       `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	JoinDate  time.Time  `json:"joinDate"`
	LastLogin *time.Time `json:"lastLogin"`
}

// ToResponse 转换为响应
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		JoinDate:  u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}
