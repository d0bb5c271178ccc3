package config

import (
	"github.com/spf13/pflag"
)

type CliConfig struct {
	ConfigFile string
	EnvFile    string
	Debug      bool
	Version    bool

	// Flags is kept so that LoadConfig can bind the overriding flags into viper.
	Flags *pflag.FlagSet
}

// ParseArgs parses the command line. args excludes the program name.
func ParseArgs(name string, args []string) (*CliConfig, error) {
	cli := &CliConfig{}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&cli.ConfigFile, "config", "", "Path to an optional YAML config file")
	fs.StringVar(&cli.EnvFile, "env-file", ".env", "Path to an optional dotenv file")
	fs.BoolVarP(&cli.Debug, "debug", "d", false, "Enable debug mode")
	fs.BoolVarP(&cli.Version, "version", "v", false, "Print version and exit")
	fs.Int("port", defaultPort, "Port to listen on")
	fs.String("environment", defaultEnvironment, "Deployment mode (production or development)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cli.Flags = fs
	return cli, nil
}
