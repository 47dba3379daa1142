package models

import "github.com/golang-jwt/jwt/v5"

// StaffClaims represents the JWT payload presented by the teacher console.
type StaffClaims struct {
	StaffID string `json:"staff_id"`
	Name    string `json:"name"`
	jwt.RegisteredClaims
}
