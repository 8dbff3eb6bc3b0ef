package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserRole is informational only; authorization is decided upstream.
type UserRole string

const (
	RoleOwner    UserRole = "OWNER"
	RoleApprover UserRole = "APPROVER"
	RoleOperator UserRole = "OPERATOR"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	BranchID string   `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}
