package config

import "time"

// Application constants
const (
	AppName    = "CasePulse"
	AppVersion = "1.0.0"

	DefaultPort     = 8050
	DefaultDataFile = "Dataset/IndividualDetails.csv"
	DefaultLogFile  = "logs/casepulse.log"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Largest page /api/data/cases will serve
	DefaultMaxPageSize = 500

	WebSocketPingPeriod = 54 * time.Second
	WebSocketPongWait   = 60 * time.Second
)
