package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tokmz/relay/pkg/config"
)

// rootOptions 全局参数
type rootOptions struct {
	configFile string
	host       string
	port       int
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "WebSocket front door for the message relay",
		Example: `  $ relay serve --config relay.yaml
  $ RELAY_SERVER_PORT=9000 relay serve
  $ relay config`,
		SilenceUsage: true,
	}
	opts.bindFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCommand(opts),
		newConfigCommand(opts),
	)
	return cmd
}

func (o *rootOptions) bindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configFile, "config", "c", "", "config file (default: ./relay.yaml or ./configs/relay.yaml if present)")
	fs.StringVar(&o.host, "host", "", "listen host, overrides server.host")
	fs.IntVar(&o.port, "port", 0, "listen port, overrides server.port")
	fs.StringVar(&o.logLevel, "log-level", "", "log level, overrides log.level")
}

// load 读取配置，显式传入的命令行参数优先于文件与环境变量
func (o *rootOptions) load(fs *pflag.FlagSet) (*config.Loader, *config.Settings, error) {
	loader := config.NewSettingsLoader(o.configFile)
	if err := loader.Load(); err != nil {
		return nil, nil, err
	}

	if fs.Changed("host") {
		loader.Set("server.host", o.host)
	}
	if fs.Changed("port") {
		loader.Set("server.port", o.port)
	}
	if fs.Changed("log-level") {
		loader.Set("log.level", o.logLevel)
	}

	settings, err := loader.Settings()
	if err != nil {
		return nil, nil, err
	}
	return loader, settings, nil
}
