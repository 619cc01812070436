package cmds

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/go-go-golems/dltctl/pkg/config"
	"github.com/go-go-golems/dltctl/pkg/display"
	"github.com/go-go-golems/dltctl/pkg/settings"
	"github.com/go-go-golems/dltctl/pkg/telemetry"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	Config       string
	Profile      string
	PipelineDir  string
	Host         string
	Token        string
	PollInterval time.Duration
	Trace        bool
}

func AddRootFlags(root *cobra.Command) {
	addRootFlags(root)
}

func addRootFlags(root *cobra.Command) {
	root.PersistentFlags().String("config", "", "Path to config file (defaults to ~/.dltctl.yaml)")
	root.PersistentFlags().String("profile", "", "Config profile to use (defaults to default_profile, then \"default\")")
	root.PersistentFlags().String("pipeline-config", "", "Directory holding pipeline.json (defaults to current directory)")
	root.PersistentFlags().String("host", "", "Workspace URL, overrides the profile and DATABRICKS_HOST")
	root.PersistentFlags().String("token", "", "Access token, overrides the profile and DATABRICKS_TOKEN")
	root.PersistentFlags().Duration("poll-interval", 0, "Interval between event polls (defaults to the profile value)")
	root.PersistentFlags().Bool("trace", false, "Write OpenTelemetry spans for polls and API calls to stderr")
}

func getRootOptions(cmd *cobra.Command) (rootOptions, error) {
	flags := cmd.Root().PersistentFlags()

	cfgPath, err := flags.GetString("config")
	if err != nil {
		return rootOptions{}, err
	}
	profile, err := flags.GetString("profile")
	if err != nil {
		return rootOptions{}, err
	}
	dir, err := flags.GetString("pipeline-config")
	if err != nil {
		return rootOptions{}, err
	}
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			return rootOptions{}, err
		}
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return rootOptions{}, err
	}
	host, err := flags.GetString("host")
	if err != nil {
		return rootOptions{}, err
	}
	token, err := flags.GetString("token")
	if err != nil {
		return rootOptions{}, err
	}
	interval, err := flags.GetDuration("poll-interval")
	if err != nil {
		return rootOptions{}, err
	}
	if interval < 0 {
		return rootOptions{}, errors.New("poll-interval must be >= 0")
	}
	trace, err := flags.GetBool("trace")
	if err != nil {
		return rootOptions{}, err
	}

	return rootOptions{
		Config:       cfgPath,
		Profile:      profile,
		PipelineDir:  dir,
		Host:         host,
		Token:        token,
		PollInterval: interval,
		Trace:        trace,
	}, nil
}

// resolveProfile layers the config file, the environment and the root flags.
func resolveProfile(opts rootOptions) (config.Profile, error) {
	var (
		cfg *config.File
		err error
	)
	if opts.Config != "" {
		cfg, err = config.Load(opts.Config)
	} else {
		cfg, err = config.LoadOptional(config.DefaultPath())
	}
	if err != nil {
		return config.Profile{}, err
	}
	p, err := cfg.Resolve(opts.Profile)
	if err != nil {
		return config.Profile{}, err
	}
	return p.Merge(config.Profile{Host: opts.Host, Token: opts.Token, PollInterval: opts.PollInterval}), nil
}

// workspace is what a command talking to the control plane needs: the
// resolved profile, a client, the pipeline settings directory and a printer
// on the command's stdout.
type workspace struct {
	opts     rootOptions
	profile  config.Profile
	client   *api.Client
	printer  *display.Printer
	shutdown telemetry.ShutdownFunc
}

func newWorkspace(cmd *cobra.Command) (*workspace, error) {
	opts, err := getRootOptions(cmd)
	if err != nil {
		return nil, err
	}
	profile, err := resolveProfile(opts)
	if err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	w := &workspace{
		opts:    opts,
		profile: profile,
		printer: display.NewPrinter(cmd.OutOrStdout()),
	}

	var clientOpts []api.ClientOption
	if opts.Trace {
		shutdown, err := telemetry.InitTracer(telemetry.ServiceName, cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		w.shutdown = shutdown
		clientOpts = append(clientOpts, api.WithTracing())
	}

	client, err := api.NewClient(profile.Host, profile.Token, clientOpts...)
	if err != nil {
		return nil, err
	}
	w.client = client
	log.Debug().Str("host", client.Host()).Str("pipeline_dir", opts.PipelineDir).Msg("workspace ready")
	return w, nil
}

// Close flushes pending spans.
func (w *workspace) Close() {
	if w.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("flush traces")
	}
}

func (w *workspace) store() settings.FileStore {
	return settings.FileStore{Dir: w.opts.PipelineDir}
}

func (w *workspace) loadSettings() (*settings.PipelineSettings, error) {
	return settings.Load(w.opts.PipelineDir)
}

// loadCreated loads the settings of a pipeline that already exists remotely.
func (w *workspace) loadCreated() (*settings.PipelineSettings, error) {
	s, err := w.loadSettings()
	if err != nil {
		return nil, err
	}
	if s.ID == "" {
		return nil, errors.New("pipeline has not been created yet, run `dltctl create` or `dltctl deploy` first")
	}
	return s, nil
}
