package main

type tableRequest struct {
	Table string `json:"table"`
}

type sampleRequest struct {
	Table string `json:"table"`
	Limit int    `json:"limit"`
}

type historyRequest struct {
	Record    string `json:"record"`
	TableName string `json:"tableName"`
}

type recentRequest struct {
	Table string `json:"table"`
	Days  int    `json:"days"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
