package model

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

type RateLimitErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int64  `json:"retryAfter"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ReadyResponse struct {
	Ready bool `json:"ready"`
}

type AuthUserResponse struct {
	Success bool     `json:"success"`
	User    AuthUser `json:"user"`
}

type VerifyResponse struct {
	Success bool     `json:"success"`
	Valid   bool     `json:"valid"`
	User    AuthUser `json:"user"`
}

type LogoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type LogoutAllResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

type SetupStatusResponse struct {
	Success    bool `json:"success"`
	NeedsSetup bool `json:"needsSetup"`
	Enabled    bool `json:"enabled"`
}
