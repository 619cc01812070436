package settings

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/pkg/errors"
)

const (
	FileName = "pipeline.json"

	DefaultEdition     = "advanced"
	DefaultChannel     = "CURRENT"
	DefaultNodeType    = "c5.4xlarge"
	DefaultLabel       = "default"
	DefaultMinWorkers  = 1
	DefaultMaxWorkers  = 5
	JobIDConfiguration = "dltctl.job_id"
)

// PipelineSettings is the local pipeline.json document.
type PipelineSettings struct {
	ID            string            `json:"id,omitempty" yaml:"id,omitempty"`
	Name          string            `json:"name,omitempty" yaml:"name,omitempty"`
	Edition       string            `json:"edition,omitempty" yaml:"edition,omitempty"`
	Target        string            `json:"target,omitempty" yaml:"target,omitempty"`
	Storage       string            `json:"storage,omitempty" yaml:"storage,omitempty"`
	Continuous    bool              `json:"continuous" yaml:"continuous"`
	Photon        bool              `json:"photon" yaml:"photon"`
	Channel       string            `json:"channel,omitempty" yaml:"channel,omitempty"`
	Development   bool              `json:"development" yaml:"development"`
	Configuration map[string]string `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	Clusters      []api.Cluster     `json:"clusters,omitempty" yaml:"clusters,omitempty"`
	Libraries     []api.Library     `json:"libraries,omitempty" yaml:"libraries,omitempty"`
	PipelineFiles []string          `json:"pipeline_files,omitempty" yaml:"pipeline_files,omitempty"`
	JobID         string            `json:"job_id,omitempty" yaml:"job_id,omitempty"`
}

func New(name string) *PipelineSettings {
	return &PipelineSettings{
		Name:        name,
		Edition:     DefaultEdition,
		Channel:     DefaultChannel,
		Development: true,
	}
}

// DefaultCluster is used when the settings name no cluster at all.
func DefaultCluster() api.Cluster {
	return api.Cluster{
		Label:            DefaultLabel,
		NodeTypeID:       DefaultNodeType,
		DriverNodeTypeID: DefaultNodeType,
		Autoscale:        &api.Autoscale{MinWorkers: DefaultMinWorkers, MaxWorkers: DefaultMaxWorkers},
	}
}

// Spec renders the request body for create and edit. Uploaded pipeline files
// take precedence over hand-written libraries, and a bound job is recorded in
// the configuration so the remote pipeline knows which job runs it.
func (s *PipelineSettings) Spec() api.PipelineSpec {
	spec := api.PipelineSpec{
		ID:          s.ID,
		Name:        s.Name,
		Storage:     s.Storage,
		Target:      s.Target,
		Continuous:  s.Continuous,
		Development: s.Development,
		Photon:      s.Photon,
		Edition:     s.Edition,
		Channel:     s.Channel,
		Clusters:    []api.Cluster{},
		Libraries:   []api.Library{},
	}
	if len(s.Configuration) > 0 || s.JobID != "" {
		spec.Configuration = make(map[string]string, len(s.Configuration)+1)
		for k, v := range s.Configuration {
			spec.Configuration[k] = v
		}
		if s.JobID != "" {
			spec.Configuration[JobIDConfiguration] = s.JobID
		}
	}

	if len(s.PipelineFiles) > 0 {
		for _, p := range s.PipelineFiles {
			spec.Libraries = append(spec.Libraries, api.Library{Notebook: &api.NotebookLibrary{Path: p}})
		}
	} else {
		spec.Libraries = append(spec.Libraries, s.Libraries...)
	}

	if len(s.Clusters) == 0 {
		spec.Clusters = append(spec.Clusters, DefaultCluster())
	} else {
		spec.Clusters = append(spec.Clusters, s.Clusters...)
	}
	return spec
}

func (s *PipelineSettings) HasJob() bool { return s.JobID != "" }

func (s *PipelineSettings) SetJobID(id string) { s.JobID = id }

func (s *PipelineSettings) ClearJobID() { s.JobID = "" }

// ValidateClusters rejects duplicate cluster labels.
func ValidateClusters(clusters []api.Cluster) error {
	seen := map[string]struct{}{}
	for _, c := range clusters {
		label := c.Label
		if label == "" {
			label = DefaultLabel
		}
		if _, ok := seen[label]; ok {
			return errors.Errorf("duplicate cluster label %q", label)
		}
		seen[label] = struct{}{}
	}
	return nil
}

// ConfigurationKeys returns the configuration keys in sorted order.
func (s *PipelineSettings) ConfigurationKeys() []string {
	keys := make([]string, 0, len(s.Configuration))
	for k := range s.Configuration {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

func Load(dir string) (*PipelineSettings, error) {
	b, err := os.ReadFile(Path(dir))
	if err != nil {
		return nil, errors.Wrap(err, "read pipeline settings")
	}
	return Decode(b)
}

// LoadOptional returns nil without error when the file is missing.
func LoadOptional(dir string) (*PipelineSettings, error) {
	s, err := Load(dir)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func Decode(b []byte) (*PipelineSettings, error) {
	var s PipelineSettings
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, errors.Wrap(err, "parse pipeline settings json")
	}
	return &s, nil
}

func Encode(s *PipelineSettings) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, errors.Wrap(err, "marshal pipeline settings")
	}
	return buf.Bytes(), nil
}

// Save replaces pipeline.json atomically: the document is written to a
// temporary file in the same directory, synced, then renamed over the old one.
func Save(dir string, s *PipelineSettings) error {
	if s == nil {
		return errors.New("nil pipeline settings")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "mkdir settings dir")
	}
	b, err := Encode(s)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+FileName+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp settings")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "write temp settings")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "sync temp settings")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, "close temp settings")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return errors.Wrap(err, "chmod temp settings")
	}
	if err := os.Rename(tmpName, Path(dir)); err != nil {
		cleanup()
		return errors.Wrap(err, "replace pipeline settings")
	}
	return nil
}

// FileStore persists settings to a fixed directory.
type FileStore struct {
	Dir string
}

func (f FileStore) Save(s *PipelineSettings) error {
	return Save(f.Dir, s)
}
