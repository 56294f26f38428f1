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

/*Package cli describes the operating environment for the code-push server.

Every setting is read from a CODEPUSH_* environment variable and can be
overridden by a flag, so the server configures the same way under systemd,
in a container, or on a developer laptop.
*/
package cli

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// EnvSettings describes all of the environment settings.
type EnvSettings struct {
	// Addr is the listen address of the HTTP server.
	Addr string

	// DatabaseURL is the Postgres connection string. Empty selects the
	// in-memory store, which only suits tests and local development.
	DatabaseURL string

	// S3Bucket holds released bundles. Empty selects the in-memory object
	// store.
	S3Bucket string
	// S3Region is the bucket's region.
	S3Region string
	// S3Endpoint points at an S3-compatible service such as MinIO; empty
	// means AWS with the default credential chain.
	S3Endpoint string
	// S3AccessKey and S3SecretKey are static credentials for
	// S3-compatible endpoints.
	S3AccessKey string
	S3SecretKey string

	// RedisAddr backs the signed-URL cache shared across replicas. Empty
	// selects a per-process cache.
	RedisAddr string
	// RedisPassword authenticates against RedisAddr.
	RedisPassword string

	// AllowedOrigins lists management-UI origins admitted by CORS,
	// comma separated in the environment variable.
	AllowedOrigins []string

	// EnableAccountRegistration opens the account registration endpoint.
	EnableAccountRegistration bool

	// Debug indicates whether the server logs at debug level.
	Debug bool
}

func New() *EnvSettings {
	env := &EnvSettings{
		Addr:          envOr("CODEPUSH_ADDR", ":3000"),
		DatabaseURL:   os.Getenv("CODEPUSH_DATABASE_URL"),
		S3Bucket:      os.Getenv("CODEPUSH_S3_BUCKET"),
		S3Region:      os.Getenv("CODEPUSH_S3_REGION"),
		S3Endpoint:    os.Getenv("CODEPUSH_S3_ENDPOINT"),
		S3AccessKey:   os.Getenv("CODEPUSH_S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("CODEPUSH_S3_SECRET_KEY"),
		RedisAddr:     os.Getenv("CODEPUSH_REDIS_ADDR"),
		RedisPassword: os.Getenv("CODEPUSH_REDIS_PASSWORD"),
	}
	if origins := os.Getenv("CODEPUSH_CORS_ORIGINS"); origins != "" {
		env.AllowedOrigins = splitList(origins)
	}
	env.EnableAccountRegistration, _ = strconv.ParseBool(os.Getenv("CODEPUSH_ENABLE_ACCOUNT_REGISTRATION"))
	env.Debug, _ = strconv.ParseBool(os.Getenv("CODEPUSH_DEBUG"))
	return env
}

// AddFlags binds flags to the given flagset.
func (s *EnvSettings) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.Addr, "addr", s.Addr, "address the HTTP server listens on")
	fs.StringVar(&s.DatabaseURL, "database-url", s.DatabaseURL, "Postgres connection string; empty runs the in-memory store")
	fs.StringVar(&s.S3Bucket, "s3-bucket", s.S3Bucket, "S3 bucket holding release bundles; empty runs the in-memory object store")
	fs.StringVar(&s.S3Region, "s3-region", s.S3Region, "region of the S3 bucket")
	fs.StringVar(&s.S3Endpoint, "s3-endpoint", s.S3Endpoint, "endpoint URL of an S3-compatible service")
	fs.StringVar(&s.RedisAddr, "redis-addr", s.RedisAddr, "Redis address for the shared URL cache; empty runs a per-process cache")
	fs.StringSliceVar(&s.AllowedOrigins, "cors-origin", s.AllowedOrigins, "origin allowed to call the management API cross-origin; repeatable")
	fs.BoolVar(&s.EnableAccountRegistration, "enable-account-registration", s.EnableAccountRegistration, "open the account registration endpoint")
	fs.BoolVar(&s.Debug, "debug", s.Debug, "enable verbose output")
}

func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return def
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
