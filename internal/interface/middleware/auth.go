package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/account-service/internal/application"
	"github.com/oksasatya/account-service/pkg/helpers"
	"github.com/oksasatya/account-service/pkg/response"
)

const (
	CtxRequesterKey = "requester"
	CtxAccountIDKey = "accountID"
)

// Authenticate reads the access token from the Authorization bearer header or
// the access_token cookie and stores the caller as an application.Requester.
// A present but invalid token is always rejected. A missing token is rejected
// only when required is true; otherwise the request continues anonymously and
// the authorizer decides.
func Authenticate(jwt *helpers.JWTManager, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if required {
				response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
				c.Abort()
				return
			}
			c.Next()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			c.Abort()
			return
		}
		c.Set(CtxAccountIDKey, claims.AccountID)
		c.Set(CtxRequesterKey, &application.Requester{ID: claims.AccountID, Roles: claims.Roles})
		c.Next()
	}
}

// RequesterFrom returns the authenticated caller, or nil for anonymous requests.
func RequesterFrom(c *gin.Context) *application.Requester {
	v, ok := c.Get(CtxRequesterKey)
	if !ok {
		return nil
	}
	req, _ := v.(*application.Requester)
	return req
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, tok, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	if tok, err := c.Cookie("access_token"); err == nil {
		return tok
	}
	return ""
}
