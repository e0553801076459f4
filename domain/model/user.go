package model

import "github.com/golang-jwt/jwt"

// UserClaims carries the authenticated user identity inside API tokens.
type UserClaims struct {
	UserName string `json:"user_name"`
	jwt.StandardClaims
}

// StateClaims is the signed, short-lived OAuth state token payload.
type StateClaims struct {
	UserID    string `json:"user_id"`
	Platform  string `json:"platform"`
	ReturnURL string `json:"return_url"`
	jwt.StandardClaims
}
