package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	client "github.com/hsn0918/llamacloud-client"
)

const envPrefix = "LLAMA_CLOUD"

// settings is the resolved CLI configuration: flags override env, env overrides the config file.
type settings struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	ProjectID         string        `mapstructure:"project_id"`
	OrganizationID    string        `mapstructure:"organization_id"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	Concurrency       int           `mapstructure:"concurrency"`
	RateLimit         float64       `mapstructure:"rate_limit"`
	LogLevel          string        `mapstructure:"log_level"`
	FailLog           string        `mapstructure:"fail_log"`
}

type cliOptions struct {
	configPath string
	v          *viper.Viper
	settings   settings
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{v: viper.New(), logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:           "llamacloud",
		Short:         "LlamaCloud document parsing, extraction and agent data CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = opts.logger.Sync()
		},
	}

	opts.addFlags(cmd.PersistentFlags())

	cmd.AddCommand(newParseCmd(opts))
	cmd.AddCommand(newExtractCmd(opts))
	cmd.AddCommand(newClassifyCmd(opts))
	cmd.AddCommand(newFilesCmd(opts))
	cmd.AddCommand(newDataCmd(opts))
	cmd.AddCommand(newSheetsCmd(opts))
	cmd.AddCommand(newCompletionCmd())

	return cmd
}

func (o *cliOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.configPath, "config", "", "Optional YAML config file")
	flags.String("api-key", "", "LlamaCloud API key (or set LLAMA_CLOUD_API_KEY)")
	flags.String("base-url", client.DefaultBaseURL, "Base URL for the LlamaCloud API")
	flags.String("project-id", "", "Project id attached to every request")
	flags.String("organization-id", "", "Organization id attached to every request")
	flags.Duration("timeout", client.DefaultTimeout, "HTTP timeout for API requests")
	flags.Duration("processing-timeout", client.ProcessingTimeout, "Timeout for long running jobs")
	flags.Duration("poll-interval", client.DefaultPollInterval, "Interval between job status checks")
	flags.Int("concurrency", client.DefaultConcurrency, "Number of files processed at once")
	flags.Float64("rate-limit", 0, "Maximum API requests per second (0 disables)")
	flags.String("log-level", "info", "Log level: debug|info|warn|error")
	flags.String("fail-log", "fail.log", "Path to append failed items to (empty disables)")
	bindFlags(o.v, flags)
}

// bindFlags maps every flag to a viper key with dashes replaced by underscores,
// which also makes it reachable as LLAMA_CLOUD_<KEY>.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		_ = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
}

func (o *cliOptions) load(cmd *cobra.Command) error {
	if o.configPath != "" {
		o.v.SetConfigFile(o.configPath)
		o.v.SetConfigType("yaml")
		if err := o.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", o.configPath, err)
		}
	}

	if err := o.v.Unmarshal(&o.settings); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	logger, err := newLogger(cmd.OutOrStdout(), o.settings.LogLevel)
	if err != nil {
		return err
	}
	o.logger = logger
	return nil
}

// client builds an API client from the resolved settings.
func (o *cliOptions) client() (client.Client, error) {
	s := o.settings
	options := []client.Option{
		client.WithBaseURL(s.BaseURL),
		client.WithTimeout(s.Timeout),
		client.WithProcessingTimeout(s.ProcessingTimeout),
		client.WithPollInterval(s.PollInterval),
		client.WithConcurrency(s.Concurrency),
		client.WithProject(s.ProjectID, s.OrganizationID),
		client.WithLogger(o.logger.Named("client")),
	}
	if s.APIKey != "" {
		options = append(options, client.WithAPIKey(s.APIKey))
	}
	if s.RateLimit > 0 {
		options = append(options, client.WithRateLimit(s.RateLimit, 1))
	}

	cli, err := client.NewClient(options...)
	if errors.Is(err, client.ErrMissingAPIKey) {
		return nil, errors.New("api key is required (flag --api-key, LLAMA_CLOUD_API_KEY or api_key in --config)")
	}
	return cli, err
}
