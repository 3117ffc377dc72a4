package dto

import "github.com/google/uuid"

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type ListResponse struct {
	Data  interface{} `json:"data"`
	Total int         `json:"total"`
}

type MemberGroupsRequest struct {
	GroupIDs []uuid.UUID `json:"group_ids"`
}

type MemberGroupsResponse struct {
	GroupIDs []uuid.UUID `json:"group_ids"`
}
