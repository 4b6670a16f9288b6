package security

import (
	"time"

	"golang.org/x/time/rate"
)

// SurveyLimiter paces the consensus sweep so a long server list is not
// queried in one burst.
func SurveyLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(100*time.Millisecond), 10) // Max 10 servers per second
}
