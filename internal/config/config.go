// Package config loads the process configuration: flags first, then LIBRIS_*
// environment variables for anything not set on the command line.
package config

import (
	goflag "flag"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config supplies the database location, the signing secret and the listen
// address.
type Config struct {
	Addr      string
	DataDir   string
	JWTSecret string
}

// Load parses the given command-line arguments (normally os.Args[1:]) and
// merges them with the environment.  The signing secret has no default and
// must be supplied.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("libris", pflag.ContinueOnError)
	fs.AddGoFlagSet(goflag.CommandLine) // adopt the glog flags (-v, -logtostderr, ...)
	fs.String("addr", ":4000", "HTTP listen address")
	fs.String("data-dir", "data", "directory holding the document store")
	fs.String("jwt-secret", "", "HMAC secret for signing login tokens (or LIBRIS_JWT_SECRET)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	v.SetEnvPrefix("libris")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Addr:      v.GetString("addr"),
		DataDir:   v.GetString("data-dir"),
		JWTSecret: v.GetString("jwt-secret"),
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("a signing secret is required (--jwt-secret or LIBRIS_JWT_SECRET)")
	}
	return cfg, nil
}
