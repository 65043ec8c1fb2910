package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/herbstock/herbstock-backend/pkg/errors"
)

// queryBool reads a boolean query parameter; anything but "true" or "1" is false
func queryBool(r *http.Request, key string) bool {
	v := strings.ToLower(r.URL.Query().Get(key))
	return v == "true" || v == "1"
}

// queryTime accepts RFC 3339 timestamps and plain dates. Dates given as the
// end of a range cover that whole day.
func queryTime(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, errors.BadRequest("invalid " + key + ": use YYYY-MM-DD or RFC 3339")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.BadRequest("invalid " + key)
	}
	return n, nil
}

func queryString(r *http.Request, key string) *string {
	if v := r.URL.Query().Get(key); v != "" {
		return &v
	}
	return nil
}
