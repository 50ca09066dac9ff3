package server

import "time"

type Comment struct {
	ID           int64     `json:"id"`
	Text         string    `json:"text"`
	TokenAddress string    `json:"tokenAddress"`
	UserAddress  string    `json:"userAddress"`
	ReplyToID    *int64    `json:"replyToId"`
	CreatedAt    time.Time `json:"createdAt"`
	Replies      []Comment `json:"replies,omitempty"`
}

type createCommentRequest struct {
	Text         string `json:"text" validate:"required,max=2000"`
	TokenAddress string `json:"tokenAddress" validate:"required,hexaddr"`
	UserAddress  string `json:"userAddress" validate:"required,hexaddr"`
	ReplyToID    *int64 `json:"replyToId" validate:"omitempty,gt=0"`
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Hash    string `json:"hash"`
	URL     string `json:"url"`
}
