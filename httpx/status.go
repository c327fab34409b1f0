package httpx

import "net/http"

const (
	StatusOK           = http.StatusOK                  // Successful request
	StatusCreated      = http.StatusCreated             // Resource created
	StatusFound        = http.StatusFound               // Redirect after login/logout
	StatusBadRequest   = http.StatusBadRequest          // Validation or malformed input
	StatusUnauthorized = http.StatusUnauthorized        // Missing or invalid authentication
	StatusForbidden    = http.StatusForbidden           // Authenticated but lacks permission
	StatusNotFound     = http.StatusNotFound            // Resource not found
	StatusConflict     = http.StatusConflict            // Uniqueness conflict
	StatusInternal     = http.StatusInternalServerError // Unexpected server error
)
