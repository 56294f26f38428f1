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

package cli

import (
	"reflect"
	"testing"

	"github.com/spf13/pflag"
)

func TestEnvSettings(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string

		addr         string
		databaseURL  string
		origins      []string
		registration bool
		debug        bool
	}{
		{
			name: "defaults",
			addr: ":3000",
		},
		{
			name: "with envvars",
			env: map[string]string{
				"CODEPUSH_ADDR":                        ":8080",
				"CODEPUSH_DATABASE_URL":                "postgres://localhost/codepush",
				"CODEPUSH_CORS_ORIGINS":                "https://a.example.com, https://b.example.com",
				"CODEPUSH_ENABLE_ACCOUNT_REGISTRATION": "1",
				"CODEPUSH_DEBUG":                       "true",
			},
			addr:         ":8080",
			databaseURL:  "postgres://localhost/codepush",
			origins:      []string{"https://a.example.com", "https://b.example.com"},
			registration: true,
			debug:        true,
		},
		{
			name: "with flags",
			args: []string{"--addr", ":9090", "--debug", "--cors-origin", "https://c.example.com"},
			addr: ":9090",
			origins: []string{
				"https://c.example.com",
			},
			debug: true,
		},
		{
			name:  "flags override envvars",
			args:  []string{"--addr", ":9090"},
			env:   map[string]string{"CODEPUSH_ADDR": ":8080", "CODEPUSH_DEBUG": "1"},
			addr:  ":9090",
			debug: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			settings := New()
			flags := pflag.NewFlagSet("codepush-server", pflag.ContinueOnError)
			settings.AddFlags(flags)
			if err := flags.Parse(tt.args); err != nil {
				t.Fatal(err)
			}

			if settings.Addr != tt.addr {
				t.Errorf("Addr = %q, want %q", settings.Addr, tt.addr)
			}
			if settings.DatabaseURL != tt.databaseURL {
				t.Errorf("DatabaseURL = %q, want %q", settings.DatabaseURL, tt.databaseURL)
			}
			if !reflect.DeepEqual(settings.AllowedOrigins, tt.origins) && len(settings.AllowedOrigins)+len(tt.origins) > 0 {
				t.Errorf("AllowedOrigins = %v, want %v", settings.AllowedOrigins, tt.origins)
			}
			if settings.EnableAccountRegistration != tt.registration {
				t.Errorf("EnableAccountRegistration = %v, want %v", settings.EnableAccountRegistration, tt.registration)
			}
			if settings.Debug != tt.debug {
				t.Errorf("Debug = %v, want %v", settings.Debug, tt.debug)
			}
		})
	}
}
