package cmds

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-go-golems/dltctl/pkg/api"
	"github.com/go-go-golems/dltctl/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type artifact struct {
	Local    string
	Relative string
	Language api.Language
}

// discoverArtifacts finds the .py and .sql sources below dir, skipping hidden
// directories.
func discoverArtifacts(dir string) ([]artifact, error) {
	var out []artifact
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		lang, ok := api.LanguageForFile(d.Name())
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, artifact{Local: p, Relative: filepath.ToSlash(rel), Language: lang})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "discover pipeline sources")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Relative < out[j].Relative })
	return out, nil
}

// artifactRoot is where staged notebooks live in the workspace.
func (w *workspace) artifactRoot(ctx context.Context, s *settings.PipelineSettings) (string, error) {
	base := w.profile.WorkspacePath
	if base == "" {
		user, err := w.client.CurrentUser(ctx)
		if err != nil {
			return "", errors.Wrap(err, "resolve workspace path")
		}
		base = path.Join("/Users", user, "dltctl_artifacts")
	}
	return path.Join(base, s.Name), nil
}

// stage uploads the local sources as notebooks and records their workspace
// paths in the settings.
func (w *workspace) stage(ctx context.Context, s *settings.PipelineSettings) error {
	arts, err := discoverArtifacts(w.opts.PipelineDir)
	if err != nil {
		return err
	}
	if len(arts) == 0 {
		return errors.Errorf("no .py or .sql sources found in %s", w.opts.PipelineDir)
	}
	root, err := w.artifactRoot(ctx, s)
	if err != nil {
		return err
	}

	w.printer.Statusf("Staging %d files to %s", len(arts), root)
	made := map[string]bool{}
	paths := make([]string, 0, len(arts))
	for _, a := range arts {
		target := path.Join(root, strings.TrimSuffix(a.Relative, path.Ext(a.Relative)))
		dir := path.Dir(target)
		if !made[dir] {
			if err := w.client.Mkdirs(ctx, dir); err != nil {
				return errors.Wrapf(err, "mkdirs %s", dir)
			}
			made[dir] = true
		}
		src, err := os.ReadFile(a.Local)
		if err != nil {
			return errors.Wrapf(err, "read %s", a.Local)
		}
		if err := w.client.ImportNotebook(ctx, target, a.Language, src); err != nil {
			return errors.Wrapf(err, "upload %s", a.Relative)
		}
		log.Debug().Str("file", a.Relative).Str("target", target).Msg("staged")
		paths = append(paths, target)
	}

	s.PipelineFiles = paths
	return w.store().Save(s)
}

func newStageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage",
		Short: "Upload pipeline sources to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWorkspace(cmd)
			if err != nil {
				return err
			}
			defer w.Close()

			s, err := w.loadSettings()
			if err != nil {
				return err
			}
			return w.stage(cmd.Context(), s)
		},
	}
}
