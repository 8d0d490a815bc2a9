package network

import (
	"errors"
	"net/http"
	"regexp"

	"portal-service/internal/apiclient"
)

var duplicatePattern = regexp.MustCompile(`(?i)already\s+(exists|connected|sent|pending|requested)|duplicate`)

// IsDuplicateRequest reports whether err is the API saying a request or connection already exists.
func IsDuplicateRequest(err error) bool {
	if err == nil || errors.Is(err, apiclient.ErrSessionExpired) {
		return false
	}
	code := apiclient.StatusCode(err)
	if code == 0 {
		return false
	}
	if code == http.StatusConflict {
		return true
	}
	return duplicatePattern.MatchString(err.Error())
}
