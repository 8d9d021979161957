package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"digilib/internal/ratelimit"
)

// RateLimit odrzuca żądania ponad limit. Kluczem jest użytkownik, a dla
// anonimowych adres IP.
func RateLimit(l ratelimit.Limiter, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if id, err := IdentityFromContext(r.Context()); err == nil {
				key = "user:" + id.UserID
			}
			if !l.Allow(r.Context(), key) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				writeError(w, http.StatusTooManyRequests, "Zbyt wiele żądań, spróbuj później")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP korzysta z RemoteAddr, które middleware.RealIP z chi już poprawił
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
