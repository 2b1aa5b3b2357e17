package config

import "time"

// Application constants
const (
	AppName     = "Pharmacy Stock Dashboard"
	AppVersion  = "1.2.0"
	ServiceName = "pharmstock"
	EnvPrefix   = "PHARMSTOCK"

	DefaultPort           = 8080
	DefaultRequestTimeout = 30 * time.Second
	DefaultDatasetPath    = "data/stock_requests.xlsx"
	DefaultLogFile        = "logs/pharmstock.log"
	DefaultLogLevel       = "info"

	// Rate Limiting
	DefaultRateLimit = 50 // requests per second
	DefaultBurstSize = 100

	// Top-N bounds for ranked tables
	MinTopN     = 5
	MaxTopN     = 50
	DefaultTopN = 20

	// WebSocket
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024
	WebSocketPingPeriod      = 30 * time.Second
	WebSocketPongWait        = 60 * time.Second
)
