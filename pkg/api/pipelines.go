package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/pkg/errors"
)

type Autoscale struct {
	MinWorkers int    `json:"min_workers" yaml:"min_workers"`
	MaxWorkers int    `json:"max_workers" yaml:"max_workers"`
	Mode       string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

type Cluster struct {
	Label            string            `json:"label,omitempty" yaml:"label,omitempty"`
	NumWorkers       *int              `json:"num_workers,omitempty" yaml:"num_workers,omitempty"`
	Autoscale        *Autoscale        `json:"autoscale,omitempty" yaml:"autoscale,omitempty"`
	NodeTypeID       string            `json:"node_type_id,omitempty" yaml:"node_type_id,omitempty"`
	DriverNodeTypeID string            `json:"driver_node_type_id,omitempty" yaml:"driver_node_type_id,omitempty"`
	PolicyID         string            `json:"policy_id,omitempty" yaml:"policy_id,omitempty"`
	SparkConf        map[string]string `json:"spark_conf,omitempty" yaml:"spark_conf,omitempty"`
	SparkEnvVars     map[string]string `json:"spark_env_vars,omitempty" yaml:"spark_env_vars,omitempty"`
	CustomTags       map[string]string `json:"custom_tags,omitempty" yaml:"custom_tags,omitempty"`
	AWSAttributes    map[string]any    `json:"aws_attributes,omitempty" yaml:"aws_attributes,omitempty"`
	InitScripts      []map[string]any  `json:"init_scripts,omitempty" yaml:"init_scripts,omitempty"`
	ClusterLogConf   map[string]any    `json:"cluster_log_conf,omitempty" yaml:"cluster_log_conf,omitempty"`
}

type NotebookLibrary struct {
	Path string `json:"path" yaml:"path"`
}

type Library struct {
	Notebook *NotebookLibrary `json:"notebook,omitempty" yaml:"notebook,omitempty"`
	Jar      string           `json:"jar,omitempty" yaml:"jar,omitempty"`
}

// PipelineSpec is the body of create and edit requests and the spec field of
// a pipeline read back.
type PipelineSpec struct {
	ID                  string            `json:"id,omitempty" yaml:"id,omitempty"`
	Name                string            `json:"name,omitempty" yaml:"name,omitempty"`
	Storage             string            `json:"storage,omitempty" yaml:"storage,omitempty"`
	Target              string            `json:"target,omitempty" yaml:"target,omitempty"`
	Configuration       map[string]string `json:"configuration,omitempty" yaml:"configuration,omitempty"`
	Clusters            []Cluster         `json:"clusters" yaml:"clusters"`
	Libraries           []Library         `json:"libraries" yaml:"libraries"`
	Continuous          bool              `json:"continuous" yaml:"continuous"`
	Development         bool              `json:"development" yaml:"development"`
	Photon              bool              `json:"photon" yaml:"photon"`
	Edition             string            `json:"edition,omitempty" yaml:"edition,omitempty"`
	Channel             string            `json:"channel,omitempty" yaml:"channel,omitempty"`
	AllowDuplicateNames bool              `json:"allow_duplicate_names,omitempty" yaml:"allow_duplicate_names,omitempty"`
}

type UpdateInfo struct {
	UpdateID     string `json:"update_id" yaml:"update_id"`
	State        string `json:"state" yaml:"state"`
	CreationTime string `json:"creation_time,omitempty" yaml:"creation_time,omitempty"`
}

type Pipeline struct {
	PipelineID      string       `json:"pipeline_id" yaml:"pipeline_id"`
	Name            string       `json:"name,omitempty" yaml:"name,omitempty"`
	State           string       `json:"state,omitempty" yaml:"state,omitempty"`
	Health          string       `json:"health,omitempty" yaml:"health,omitempty"`
	ClusterID       string       `json:"cluster_id,omitempty" yaml:"cluster_id,omitempty"`
	CreatorUserName string       `json:"creator_user_name,omitempty" yaml:"creator_user_name,omitempty"`
	Spec            PipelineSpec `json:"spec" yaml:"spec"`
	LatestUpdates   []UpdateInfo `json:"latest_updates,omitempty" yaml:"latest_updates,omitempty"`
}

// LatestUpdate returns the most recent update, if any.
func (p *Pipeline) LatestUpdate() (UpdateInfo, bool) {
	if p == nil || len(p.LatestUpdates) == 0 {
		return UpdateInfo{}, false
	}
	return p.LatestUpdates[0], true
}

func (p *Pipeline) IsRunning() bool {
	return p != nil && strings.EqualFold(p.State, "RUNNING")
}

type PipelineStatus struct {
	PipelineID string `json:"pipeline_id"`
	Name       string `json:"name"`
	State      string `json:"state"`
}

// PipelineNameNotUniqueError is returned when a name lookup matches more than
// one pipeline.
type PipelineNameNotUniqueError struct {
	Name string
	IDs  []string
}

func (e *PipelineNameNotUniqueError) Error() string {
	return fmt.Sprintf("pipeline name %q is not unique: %s", e.Name, strings.Join(e.IDs, ", "))
}

func pipelinePath(id string) string {
	return "/api/2.0/pipelines/" + url.PathEscape(id)
}

func (c *Client) GetPipeline(ctx context.Context, id string) (*Pipeline, error) {
	var p Pipeline
	if err := c.get(ctx, pipelinePath(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreatePipeline(ctx context.Context, spec PipelineSpec) (string, error) {
	spec.ID = ""
	var resp struct {
		PipelineID string `json:"pipeline_id"`
	}
	if err := c.post(ctx, "/api/2.0/pipelines", spec, &resp); err != nil {
		return "", err
	}
	if resp.PipelineID == "" {
		return "", errors.New("create pipeline: response has no pipeline_id")
	}
	return resp.PipelineID, nil
}

func (c *Client) EditPipeline(ctx context.Context, id string, spec PipelineSpec) error {
	spec.ID = id
	return c.do(ctx, "PUT", pipelinePath(id), nil, spec, nil)
}

func (c *Client) DeletePipeline(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", pipelinePath(id), nil, nil, nil)
}

// StartUpdate starts a new update and returns its id.
func (c *Client) StartUpdate(ctx context.Context, id string, fullRefresh bool) (string, error) {
	body := map[string]any{"full_refresh": fullRefresh}
	var resp struct {
		UpdateID string `json:"update_id"`
	}
	if err := c.post(ctx, pipelinePath(id)+"/updates", body, &resp); err != nil {
		return "", err
	}
	return resp.UpdateID, nil
}

func (c *Client) StopPipeline(ctx context.Context, id string) error {
	return c.post(ctx, pipelinePath(id)+"/stop", map[string]any{}, nil)
}

// FindPipelineByName returns the id of the pipeline with exactly this name,
// or "" when none exists.
func (c *Client) FindPipelineByName(ctx context.Context, name string) (string, error) {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf("name LIKE '%s'", strings.ReplaceAll(name, "'", "''")))
	q.Set("max_results", "100")

	var ids []string
	for {
		var resp struct {
			Statuses      []PipelineStatus `json:"statuses"`
			NextPageToken string           `json:"next_page_token"`
		}
		if err := c.get(ctx, "/api/2.0/pipelines", q, &resp); err != nil {
			return "", err
		}
		for _, s := range resp.Statuses {
			if s.Name == name {
				ids = append(ids, s.PipelineID)
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		q = url.Values{}
		q.Set("page_token", resp.NextPageToken)
		q.Set("max_results", "100")
	}

	switch len(ids) {
	case 0:
		return "", nil
	case 1:
		return ids[0], nil
	default:
		return "", &PipelineNameNotUniqueError{Name: name, IDs: ids}
	}
}

// ListEvents reads one page of the pipeline event feed, oldest first.
func (c *Client) ListEvents(ctx context.Context, pipelineID string, opts events.ListOptions) (*events.Page, error) {
	q := url.Values{}
	if opts.MaxResults > 0 {
		q.Set("max_results", strconv.Itoa(opts.MaxResults))
	}
	if opts.PageToken != "" {
		q.Set("page_token", opts.PageToken)
	} else {
		q.Set("order_by", "timestamp asc")
		if !opts.Since.IsZero() {
			q.Set("filter", fmt.Sprintf("timestamp >= '%s'", events.FormatTimestamp(opts.Since)))
		}
	}

	var raw events.RawPage
	if err := c.get(ctx, pipelinePath(pipelineID)+"/events", q, &raw); err != nil {
		return nil, err
	}
	return raw.Decode()
}

// LatestEventTime returns the timestamp of the newest event in the feed, or
// the zero time for an empty feed.
func (c *Client) LatestEventTime(ctx context.Context, pipelineID string) (time.Time, error) {
	q := url.Values{}
	q.Set("order_by", "timestamp desc")
	q.Set("max_results", "1")
	var raw events.RawPage
	if err := c.get(ctx, pipelinePath(pipelineID)+"/events", q, &raw); err != nil {
		return time.Time{}, err
	}
	p, err := raw.Decode()
	if err != nil {
		return time.Time{}, err
	}
	if len(p.Events) == 0 {
		return time.Time{}, nil
	}
	return p.Events[0].Timestamp, nil
}

var _ events.Source = (*Client)(nil)
