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

	"github.com/gin-gonic/gin"

	"codepush.sh/codepush/pkg/errs"
)

// statusOf maps an error's kind onto the HTTP status it travels as. The
// mapping lives only here; the rest of the server never thinks in HTTP
// status codes.
func statusOf(err error) int {
	switch {
	case errs.IsNotFound(err):
		return http.StatusNotFound
	case errs.IsAlreadyExists(err), errs.IsConflict(err):
		return http.StatusConflict
	case errs.IsKind(err, errs.Invalid):
		return http.StatusBadRequest
	case errs.IsKind(err, errs.Expired), errs.IsKind(err, errs.Unauthorized):
		return http.StatusUnauthorized
	case errs.IsKind(err, errs.Forbidden):
		return http.StatusForbidden
	case errs.IsKind(err, errs.TooLarge):
		return http.StatusRequestEntityTooLarge
	case errs.IsConnectionFailed(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail ends the request with the status matching err. Internal details are
// logged, not leaked: 5xx responses carry a generic message.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		s.log("request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
