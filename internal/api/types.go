package api

// HealthResponse represents the liveness payload
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse represents the gateway status payload
type StatusResponse struct {
	Status            string `json:"status"`
	ActiveConnections int    `json:"active_connections"`
}
