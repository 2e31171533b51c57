package ginserver

import (
	"strings"

	gin "github.com/gin-gonic/gin"

	"tinyhouse/internal/app/policies"
)

const (
	viewerCookie = "viewer"
	csrfHeader   = "X-CSRF-TOKEN"
)

// credentials reads the viewer id cookie and the CSRF token header. Both must
// be present for the request to be authenticated; a half pair is anonymous.
func credentials(c *gin.Context) policies.Credentials {
	viewerID, err := c.Cookie(viewerCookie)
	if err != nil {
		return policies.Credentials{}
	}
	token := strings.TrimSpace(c.GetHeader(csrfHeader))
	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" || token == "" {
		return policies.Credentials{}
	}
	return policies.Credentials{ViewerID: viewerID, Token: token}
}
