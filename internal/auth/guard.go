package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendkiosk/internal/session"
)

const userKey = "session_user"

// RequireSession gates a route group on the current session. A missing or
// expired session is a 401 (the station UI redirects to login on that), a
// role outside `roles` is a 403. Core operations never see either case.
func RequireSession(mgr *session.Manager, roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := mgr.Current()
		if !s.Active() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		if TokenExpired(s.Token, time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		role, err := ParseRole(s.User.Role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unknown role"})
			return
		}
		if !Allowed(role, roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Set(userKey, *s.User)
		c.Next()
	}
}
