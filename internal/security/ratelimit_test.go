package security

import (
	"testing"
	"time"
)

func TestSurveyLimiter_Burst(t *testing.T) {
	l := SurveyLimiter()
	now := time.Now()

	for i := 0; i < 10; i++ {
		if !l.AllowN(now, 1) {
			t.Fatalf("request %d of the initial burst was throttled", i+1)
		}
	}
	if l.AllowN(now, 1) {
		t.Error("11th request in the same instant should be throttled")
	}
	if !l.AllowN(now.Add(100*time.Millisecond), 1) {
		t.Error("a token should be available after 100ms")
	}
}
