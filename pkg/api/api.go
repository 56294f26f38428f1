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

// Package api exposes the server over HTTP: the unauthenticated acquisition
// surface client SDKs poll, and the token-authenticated management surface
// the CLI drives. Handlers translate between the wire and the action layer;
// all behavior lives in pkg/action.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"codepush.sh/codepush/pkg/action"
)

// Config carries everything the HTTP layer needs.
type Config struct {
	Actions *action.Configuration

	// AllowedOrigins lists management-UI origins admitted by CORS. Empty
	// disables cross-origin access.
	AllowedOrigins []string

	// EnableAccountRegistration opens POST /accounts. Deployments fronted
	// by an external identity provider keep it closed.
	EnableAccountRegistration bool

	Log func(string, ...interface{})
}

// Server is the HTTP face of the code-push server.
type Server struct {
	actions      *action.Configuration
	registration bool
	origins      []string
	Log          func(string, ...interface{})
}

// NewServer creates a Server from cfg.
func NewServer(cfg Config) *Server {
	return &Server{
		actions:      cfg.Actions,
		registration: cfg.EnableAccountRegistration,
		origins:      cfg.AllowedOrigins,
		Log:          cfg.Log,
	}
}

func (s *Server) log(format string, v ...interface{}) {
	if s.Log != nil {
		s.Log(format, v...)
	}
}

// Handler builds the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), cors(s.origins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Acquisition surface. No auth: deployment keys are the only
	// credential shipped inside app binaries.
	router.GET("/updateCheck", s.updateCheck)
	router.GET("/v0.1/public/codepush/update_check", s.updateCheckV1)
	router.POST("/reportStatus/deploy", s.reportDeploy)
	router.POST("/reportStatus/download", s.reportDownload)

	if s.registration {
		router.POST("/accounts", s.registerAccount)
	}

	// Management surface.
	auth := router.Group("/", s.requireAuth())
	{
		auth.GET("/account", s.getAccount)

		auth.GET("/accessKeys", s.listAccessKeys)
		auth.POST("/accessKeys", s.createAccessKey)
		auth.PATCH("/accessKeys/:friendlyName", s.patchAccessKey)
		auth.DELETE("/accessKeys/:friendlyName", s.removeAccessKey)

		auth.GET("/apps", s.listApps)
		auth.POST("/apps", s.createApp)
		auth.GET("/apps/:appName", s.getApp)
		auth.PATCH("/apps/:appName", s.renameApp)
		auth.DELETE("/apps/:appName", s.removeApp)
		auth.POST("/apps/:appName/transfer/:email", s.transferApp)

		auth.GET("/apps/:appName/collaborators", s.listCollaborators)
		auth.POST("/apps/:appName/collaborators/:email", s.addCollaborator)
		auth.DELETE("/apps/:appName/collaborators/:email", s.removeCollaborator)

		auth.GET("/apps/:appName/deployments", s.listDeployments)
		auth.POST("/apps/:appName/deployments", s.createDeployment)
		auth.GET("/apps/:appName/deployments/:deploymentName", s.getDeployment)
		auth.PATCH("/apps/:appName/deployments/:deploymentName", s.renameDeployment)
		auth.DELETE("/apps/:appName/deployments/:deploymentName", s.removeDeployment)

		auth.POST("/apps/:appName/deployments/:deploymentName/release", s.releasePackage)
		auth.PATCH("/apps/:appName/deployments/:deploymentName/release", s.patchRelease)
		auth.POST("/apps/:appName/deployments/:deploymentName/promote/:destDeploymentName", s.promote)
		auth.POST("/apps/:appName/deployments/:deploymentName/rollback", s.rollback)
		auth.POST("/apps/:appName/deployments/:deploymentName/rollback/:targetRelease", s.rollback)

		auth.GET("/apps/:appName/deployments/:deploymentName/history", s.history)
		auth.DELETE("/apps/:appName/deployments/:deploymentName/history", s.clearHistory)
		auth.GET("/apps/:appName/deployments/:deploymentName/metrics", s.metrics)
	}

	return router
}
