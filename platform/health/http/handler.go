package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Check именованная проверка зависимости (postgres, redis, ...)
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler возвращает HTTP handler для health check endpoint.
// 200 {"status":"ok"} если все проверки прошли (или их нет),
// 503 {"status":"not ready"} с текстом ошибки по каждой упавшей проверке.
func Handler(timeout time.Duration, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := response{Status: "ok"}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				if resp.Checks == nil {
					resp.Checks = make(map[string]string)
				}
				resp.Checks[c.Name] = err.Error()
				resp.Status = "not ready"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
