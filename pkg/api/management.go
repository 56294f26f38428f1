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
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"codepush.sh/codepush/pkg/action"
	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/time"
)

// maxBundleSize caps uploaded bundle archives.
const maxBundleSize = 200 << 20

// registerAccount creates an account plus a first session key. Only routed
// when registration is enabled.
func (s *Server) registerAccount(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		s.fail(c, errs.ErrInvalid("an email is required"))
		return
	}
	account := &release.Account{
		Email:       body.Email,
		Name:        body.Name,
		CreatedTime: time.Now(),
	}
	if err := s.actions.Storage.CreateAccount(c.Request.Context(), account); err != nil {
		s.fail(c, err)
		return
	}
	create := action.NewCreateAccessKey(s.actions)
	create.FriendlyName = "Initial session"
	create.CreatedBy = "registration"
	create.IsSession = true
	key, err := create.Run(c.Request.Context(), account.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"account": account, "accessKey": key})
}

func (s *Server) getAccount(c *gin.Context) {
	account, err := s.actions.Storage.GetAccount(c.Request.Context(), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

func (s *Server) listAccessKeys(c *gin.Context) {
	keys, err := action.NewListAccessKeys(s.actions).Run(c.Request.Context(), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessKeys": keys})
}

func (s *Server) createAccessKey(c *gin.Context) {
	var body struct {
		FriendlyName string `json:"friendlyName"`
		CreatedBy    string `json:"createdBy"`
		// TTL is milliseconds, matching the management CLI.
		TTL       int64 `json:"ttl"`
		IsSession bool  `json:"isSession"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errs.ErrInvalid("malformed access key request: %v", err))
		return
	}
	create := action.NewCreateAccessKey(s.actions)
	create.FriendlyName = body.FriendlyName
	create.CreatedBy = body.CreatedBy
	create.TTL = time.Duration(body.TTL) * time.Millisecond
	create.IsSession = body.IsSession
	key, err := create.Run(c.Request.Context(), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accessKey": key})
}

func (s *Server) patchAccessKey(c *gin.Context) {
	var body struct {
		FriendlyName *string `json:"friendlyName"`
		TTL          *int64  `json:"ttl"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errs.ErrInvalid("malformed access key patch: %v", err))
		return
	}
	patch := action.NewPatchAccessKey(s.actions)
	patch.FriendlyName = body.FriendlyName
	if body.TTL != nil {
		ttl := time.Duration(*body.TTL) * time.Millisecond
		patch.TTL = &ttl
	}
	key, err := patch.Run(c.Request.Context(), accountID(c), c.Param("friendlyName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessKey": key})
}

func (s *Server) removeAccessKey(c *gin.Context) {
	if err := action.NewRemoveAccessKey(s.actions).Run(c.Request.Context(), accountID(c), c.Param("friendlyName")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listApps(c *gin.Context) {
	apps, err := action.NewListApps(s.actions).Run(c.Request.Context(), accountID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"apps": apps})
}

func (s *Server) createApp(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errs.ErrInvalid("malformed app request: %v", err))
		return
	}
	app, err := action.NewCreateApp(s.actions).Run(c.Request.Context(), accountID(c), body.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Location", "/apps/"+app.Name)
	c.JSON(http.StatusCreated, gin.H{"app": app})
}

func (s *Server) getApp(c *gin.Context) {
	app, err := action.NewGetApp(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"app": app})
}

func (s *Server) renameApp(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errs.ErrInvalid("malformed app patch: %v", err))
		return
	}
	rename := action.NewRenameApp(s.actions)
	rename.NewName = body.Name
	app, err := rename.Run(c.Request.Context(), accountID(c), c.Param("appName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"app": app})
}

func (s *Server) removeApp(c *gin.Context) {
	if err := action.NewRemoveApp(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) transferApp(c *gin.Context) {
	err := action.NewTransferApp(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("email"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) listCollaborators(c *gin.Context) {
	collaborators, err := action.NewListCollaborators(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"collaborators": collaborators})
}

func (s *Server) addCollaborator(c *gin.Context) {
	err := action.NewAddCollaborator(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("email"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Server) removeCollaborator(c *gin.Context) {
	err := action.NewRemoveCollaborator(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("email"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listDeployments(c *gin.Context) {
	deployments, err := action.NewListDeployments(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployments": deployments})
}

func (s *Server) createDeployment(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
		Key  string `json:"key"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errs.ErrInvalid("malformed deployment request: %v", err))
		return
	}
	create := action.NewCreateDeployment(s.actions)
	create.Key = body.Key
	dep, err := create.Run(c.Request.Context(), accountID(c), c.Param("appName"), body.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Location", "/apps/"+c.Param("appName")+"/deployments/"+dep.Name)
	c.JSON(http.StatusCreated, gin.H{"deployment": dep})
}

func (s *Server) getDeployment(c *gin.Context) {
	dep, err := action.NewGetDeployment(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("deploymentName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployment": dep})
}

func (s *Server) renameDeployment(c *gin.Context) {
	var body struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errs.ErrInvalid("malformed deployment patch: %v", err))
		return
	}
	rename := action.NewRenameDeployment(s.actions)
	rename.NewName = body.Name
	dep, err := rename.Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("deploymentName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployment": dep})
}

func (s *Server) removeDeployment(c *gin.Context) {
	err := action.NewRemoveDeployment(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("deploymentName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// packageInfo is the metadata document the CLI sends alongside uploads,
// promotions, and release patches. Absent fields stay nil.
type packageInfo struct {
	AppVersion  *string `json:"appVersion"`
	Description *string `json:"description"`
	IsDisabled  *bool   `json:"isDisabled"`
	IsMandatory *bool   `json:"isMandatory"`
	Rollout     *int    `json:"rollout"`
	Label       *string `json:"label"`
}

// callerEmail resolves the authenticated account's email for provenance
// fields.
func (s *Server) callerEmail(c *gin.Context) (string, error) {
	account, err := s.actions.Storage.GetAccount(c.Request.Context(), accountID(c))
	if err != nil {
		return "", err
	}
	return account.Email, nil
}

// releasePackage accepts a multipart upload: a "package" part carrying the
// bundle ZIP and a "packageInfo" part carrying metadata JSON.
func (s *Server) releasePackage(c *gin.Context) {
	file, err := c.FormFile("package")
	if err != nil {
		s.fail(c, errs.ErrInvalid("a package file is required"))
		return
	}
	if file.Size > maxBundleSize {
		s.fail(c, errs.New(errs.TooLarge, "package exceeds the %d byte limit", maxBundleSize))
		return
	}
	var info packageInfo
	if raw := c.PostForm("packageInfo"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			s.fail(c, errs.ErrInvalid("malformed packageInfo: %v", err))
			return
		}
	}
	if info.AppVersion == nil {
		s.fail(c, errs.ErrInvalid("packageInfo.appVersion is required"))
		return
	}

	src, err := file.Open()
	if err != nil {
		s.fail(c, errs.ErrInvalid("reading package upload: %v", err))
		return
	}
	defer src.Close()
	bundle, err := io.ReadAll(io.LimitReader(src, maxBundleSize+1))
	if err != nil {
		s.fail(c, errs.Wrap(err, errs.Internal, "reading package upload"))
		return
	}
	if len(bundle) > maxBundleSize {
		s.fail(c, errs.New(errs.TooLarge, "package exceeds the %d byte limit", maxBundleSize))
		return
	}

	email, err := s.callerEmail(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	rel := action.NewRelease(s.actions)
	rel.AppVersion = *info.AppVersion
	rel.Rollout = info.Rollout
	rel.ReleasedBy = email
	if info.Description != nil {
		rel.Description = *info.Description
	}
	if info.IsDisabled != nil {
		rel.IsDisabled = *info.IsDisabled
	}
	if info.IsMandatory != nil {
		rel.IsMandatory = *info.IsMandatory
	}
	pkg, err := rel.Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("deploymentName"), bundle)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"package": pkg})
}

func (s *Server) patchRelease(c *gin.Context) {
	var body struct {
		PackageInfo packageInfo `json:"packageInfo"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errs.ErrInvalid("malformed release patch: %v", err))
		return
	}
	patch := action.NewUpdateRelease(s.actions)
	if body.PackageInfo.Label != nil {
		patch.Label = *body.PackageInfo.Label
	}
	patch.AppVersion = body.PackageInfo.AppVersion
	patch.Description = body.PackageInfo.Description
	patch.IsDisabled = body.PackageInfo.IsDisabled
	patch.IsMandatory = body.PackageInfo.IsMandatory
	patch.Rollout = body.PackageInfo.Rollout
	pkg, err := patch.Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("deploymentName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"package": pkg})
}

func (s *Server) promote(c *gin.Context) {
	var body struct {
		PackageInfo packageInfo `json:"packageInfo"`
	}
	// The promote body is optional; an empty body inherits everything.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			s.fail(c, errs.ErrInvalid("malformed promote request: %v", err))
			return
		}
	}
	email, err := s.callerEmail(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	promote := action.NewPromote(s.actions)
	promote.AppVersion = body.PackageInfo.AppVersion
	promote.Description = body.PackageInfo.Description
	promote.IsDisabled = body.PackageInfo.IsDisabled
	promote.IsMandatory = body.PackageInfo.IsMandatory
	promote.Rollout = body.PackageInfo.Rollout
	promote.ReleasedBy = email
	pkg, err := promote.Run(c.Request.Context(), accountID(c), c.Param("appName"),
		c.Param("deploymentName"), c.Param("destDeploymentName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"package": pkg})
}

func (s *Server) rollback(c *gin.Context) {
	email, err := s.callerEmail(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	rollback := action.NewRollback(s.actions)
	rollback.TargetLabel = c.Param("targetRelease")
	rollback.ReleasedBy = email
	pkg, err := rollback.Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("deploymentName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"package": pkg})
}

func (s *Server) history(c *gin.Context) {
	history, err := action.NewHistory(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("deploymentName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) clearHistory(c *gin.Context) {
	err := action.NewClearHistory(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("deploymentName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) metrics(c *gin.Context) {
	metrics, err := action.NewDeploymentMetrics(s.actions).Run(c.Request.Context(), accountID(c), c.Param("appName"), c.Param("deploymentName"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var totalActive int64
	for _, m := range metrics {
		totalActive += m.Active
	}
	c.JSON(http.StatusOK, gin.H{"metrics": metrics, "totalActive": totalActive})
}
