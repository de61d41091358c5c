package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// ParamValidator is a function type that validates a parameter.
type ParamValidator func(valueToTest int64) bool

// between returns a ParamValidator that accepts values in [lo, hi].
func between(lo, hi int64) ParamValidator {
	return func(argValue int64) bool {
		return argValue >= lo && argValue <= hi
	}
}

// ParseValidateRange reads an integer query parameter and checks it lies in [lo, hi].
func ParseValidateRange(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, lo, hi int64) (int, bool) {
	return parseValidate(r, w, logger, key, between(lo, hi))
}

func parseValidate(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, pValidator ParamValidator) (int, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("%s url parameter is required", key))
		return 0, false
	}
	intValue, err := strconv.ParseInt(value, 10, 32)
	if err != nil || !pValidator(intValue) {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return 0, false
	}
	return int(intValue), true
}
