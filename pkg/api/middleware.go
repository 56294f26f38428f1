/*
Copyright The CodePush Server Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"codepush.sh/codepush/pkg/errs"
)

const (
	// accountIDKey is where auth middleware parks the caller's account id.
	accountIDKey = "codepush.accountID"
	// requestIDHeader is echoed back on every response for log correlation.
	requestIDHeader = "X-Request-Id"
)

// requestID tags each request with a correlation id, keeping one supplied
// by a proxy if present.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// cors answers cross-origin requests for the management UI. Only origins on
// the allowlist are admitted; an empty allowlist disables CORS entirely.
func cors(allowed []string) gin.HandlerFunc {
	allowedSet := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		allowedSet[strings.TrimSuffix(origin, "/")] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || !allowedSet[strings.TrimSuffix(origin, "/")] {
			c.Next()
			return
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requireAuth resolves the bearer token to an account and aborts with 401
// when it cannot.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			s.fail(c, errs.ErrUnauthorized("a bearer access key is required"))
			return
		}
		accountID, err := s.actions.Storage.GetAccountIDFromAccessKey(c.Request.Context(), token)
		if err != nil {
			if errs.IsNotFound(err) {
				err = errs.ErrUnauthorized("invalid access key")
			}
			s.fail(c, err)
			return
		}
		c.Set(accountIDKey, accountID)
		c.Next()
	}
}

// accountID reads the authenticated account id set by requireAuth.
func accountID(c *gin.Context) string {
	return c.GetString(accountIDKey)
}
