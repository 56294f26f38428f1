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

// codepush-server is the over-the-air update server for CodePush client
// SDKs: it stores released bundles, answers device update checks, and
// exposes the management API the release CLI drives.
package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codepush.sh/codepush/pkg/cli"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	settings := cli.New()
	cmd := &cobra.Command{
		Use:          "codepush-server",
		Short:        "serve over-the-air updates to CodePush clients",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(settings.Debug)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if !settings.Debug {
				gin.SetMode(gin.ReleaseMode)
			}
			return serve(cmd.Context(), settings, logger.Sugar())
		},
	}
	settings.AddFlags(cmd.Flags())
	return cmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
