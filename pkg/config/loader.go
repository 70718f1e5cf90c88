package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/kkyr/fig"
	"github.com/spf13/pflag"
)

const EnvPrefix = "WATCHPARTY"

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom path to the configuration file.
// Reads and puts environment variables with the prefix WATCHPARTY_.
// Params from the config should be in uppercase separated with _.
// Without any config file the struct gets its default tags and env values.
func LoadConfig(config any, path string) (paths []string, err error) {
	dirs := []string{path}
	if path == "" {
		dirs = append(dirs, ".", "configs", "../../configs")
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, filepath.Join(home, ".watchparty"))
		}
	}
	err = fig.Load(config, fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
	if errors.Is(err, fig.ErrFileNotFound) && path == "" {
		return nil, LoadConfigEnv(config)
	}
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

func LoadConfigEnv(config any) error {
	return fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
}

// Path extracts only the --conf value from the command line arguments,
// so the config file can be loaded before the rest of the flags override it.
func Path(args []string) string {
	fs := pflag.NewFlagSet("conf", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.Usage = func() {}
	path := fs.String(confFlag, "", "")
	_ = fs.Parse(args)
	return *path
}

const confFlag = "conf"
