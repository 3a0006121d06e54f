// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Mapping associates a sentinel error with a problem code and HTTP status.
type Mapping struct {
	Err    error
	Code   string
	Status int
}

// RespondMapped writes the first matching problem for err, or a generic 500.
// Handlers register their domain taxonomy once and reuse it per request.
func RespondMapped(w http.ResponseWriter, err error, mappings []Mapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			Problem(w, m.Status, m.Code, err.Error())
			return
		}
	}
	Problem(w, http.StatusInternalServerError, "PERSISTENCE_FAILURE", "")
}
