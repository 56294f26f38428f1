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

	"codepush.sh/codepush/pkg/action"
	"codepush.sh/codepush/pkg/errs"
	"codepush.sh/codepush/pkg/release"
)

// updateCheck serves the camelCase acquisition route older client SDKs use.
func (s *Server) updateCheck(c *gin.Context) {
	q := action.UpdateQuery{
		DeploymentKey:  c.Query("deploymentKey"),
		AppVersion:     c.Query("appVersion"),
		PackageHash:    c.Query("packageHash"),
		Label:          c.Query("label"),
		ClientUniqueID: c.Query("clientUniqueId"),
		IsCompanion:    c.Query("isCompanion") == "true",
	}
	info, err := action.NewUpdateCheck(s.actions).Run(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updateInfo": info})
}

// updateInfoV1 is the snake_case rendering of the update response served on
// the v0.1 route.
type updateInfoV1 struct {
	IsAvailable            bool   `json:"is_available"`
	IsMandatory            bool   `json:"is_mandatory"`
	AppVersion             string `json:"app_version"`
	TargetBinaryRange      string `json:"target_binary_range"`
	ShouldRunBinaryVersion bool   `json:"should_run_binary_version,omitempty"`
	UpdateAppVersion       bool   `json:"update_app_version,omitempty"`
	PackageHash            string `json:"package_hash,omitempty"`
	Label                  string `json:"label,omitempty"`
	PackageSize            int64  `json:"package_size,omitempty"`
	Description            string `json:"description,omitempty"`
	DownloadURL            string `json:"download_url,omitempty"`
}

func toV1(info *release.UpdateInfo) updateInfoV1 {
	return updateInfoV1{
		IsAvailable:            info.IsAvailable,
		IsMandatory:            info.IsMandatory,
		AppVersion:             info.AppVersion,
		TargetBinaryRange:      info.AppVersion,
		ShouldRunBinaryVersion: info.ShouldRunBinaryVersion,
		UpdateAppVersion:       info.UpdateAppVersion,
		PackageHash:            info.PackageHash,
		Label:                  info.Label,
		PackageSize:            info.PackageSize,
		Description:            info.Description,
		DownloadURL:            info.DownloadURL,
	}
}

// updateCheckV1 serves the snake_case acquisition route current client SDKs
// use.
func (s *Server) updateCheckV1(c *gin.Context) {
	q := action.UpdateQuery{
		DeploymentKey:  c.Query("deployment_key"),
		AppVersion:     c.Query("app_version"),
		PackageHash:    c.Query("package_hash"),
		Label:          c.Query("label"),
		ClientUniqueID: c.Query("client_unique_id"),
		IsCompanion:    c.Query("is_companion") == "true",
	}
	info, err := action.NewUpdateCheck(s.actions).Run(c.Request.Context(), q)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"update_info": toV1(info)})
}

// statusReport is the body of both reportStatus routes. Older SDKs send
// camelCase, newer ones snake_case; both spellings are accepted.
type statusReport struct {
	DeploymentKey             string                   `json:"deploymentKey"`
	DeploymentKeySnake        string                   `json:"deployment_key"`
	AppVersion                string                   `json:"appVersion"`
	AppVersionSnake           string                   `json:"app_version"`
	Label                     string                   `json:"label"`
	ClientUniqueID            string                   `json:"clientUniqueId"`
	ClientUniqueIDSnake       string                   `json:"client_unique_id"`
	Status                    release.DeploymentStatus `json:"status"`
	PreviousDeploymentKey     string                   `json:"previousDeploymentKey"`
	PreviousLabelOrAppVersion string                   `json:"previousLabelOrAppVersion"`
}

func (r *statusReport) normalize() {
	if r.DeploymentKey == "" {
		r.DeploymentKey = r.DeploymentKeySnake
	}
	if r.AppVersion == "" {
		r.AppVersion = r.AppVersionSnake
	}
	if r.ClientUniqueID == "" {
		r.ClientUniqueID = r.ClientUniqueIDSnake
	}
	// Devices still on the binary report their app version as the label.
	if r.Label == "" {
		r.Label = r.AppVersion
	}
}

// reportDeploy records install outcomes and label transitions.
func (s *Server) reportDeploy(c *gin.Context) {
	var body statusReport
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errs.ErrInvalid("malformed status report: %v", err))
		return
	}
	body.normalize()

	report := action.NewReport(s.actions)
	var err error
	if body.Status != "" {
		err = report.DeploymentStatus(c.Request.Context(), body.DeploymentKey, body.Label, body.ClientUniqueID, body.Status)
	} else {
		err = report.Deployment(c.Request.Context(), body.DeploymentKey, body.Label, body.ClientUniqueID,
			body.PreviousDeploymentKey, body.PreviousLabelOrAppVersion)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// reportDownload records a completed bundle download.
func (s *Server) reportDownload(c *gin.Context) {
	var body statusReport
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, errs.ErrInvalid("malformed status report: %v", err))
		return
	}
	body.normalize()

	if err := action.NewReport(s.actions).Download(c.Request.Context(), body.DeploymentKey, body.Label, body.ClientUniqueID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
