package models

import (
	"time"
)

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	PasswordHash     string    `json:"password_hash,omitempty"`
	Roles            []string  `json:"roles"`
	PurchasedStories []string  `json:"purchased_stories"`
	CreatedAt        time.Time `json:"created_at"`
}

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role" binding:"omitempty,oneof=reader writer"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token  string   `json:"token"`
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

type RateRequest struct {
	Rating int `json:"rating"`
}

type StatusRequest struct {
	Status StoryStatus `json:"status" binding:"required,oneof=pending approved rejected"`
}

type WithdrawRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

type NetworkEventRequest struct {
	Online          bool   `json:"online"`
	ConnectionType  string `json:"connection_type"`
	ConnectionSpeed string `json:"connection_speed"`
}

type NetworkStatusResponse struct {
	Online          bool   `json:"online"`
	ConnectionType  string `json:"connection_type"`
	ConnectionSpeed string `json:"connection_speed"`
	LatencyMS       *int64 `json:"latency_ms,omitempty"`
}

type PresignedUploadRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	FileName    string `json:"file_name" binding:"required"`
}

type PresignedUploadResponse struct {
	UploadURL string `json:"upload_url"`
	CoverKey  string `json:"cover_key"`
}
