// Package storage persists simulation runs as a directory of JSON
// artifacts plus the resolved configuration in YAML. One directory per
// run; files are written whole, never appended.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/driftlab/socsim/internal/agent"
	"github.com/driftlab/socsim/internal/network"
	"github.com/driftlab/socsim/pkg/types"
)

const (
	configFile      = "simulation_config.yaml"
	networkFile     = "network.json"
	feedFile        = "feed.json"
	individualsFile = "individuals.json"
)

// RunStore writes the artifacts of a single run into one directory.
type RunStore struct {
	dir string
	log *logrus.Entry
}

// NewRunStore creates the run directory (parents included) and returns
// a store bound to it.
func NewRunStore(dir string, logger *logrus.Logger) (*RunStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage: run directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create run directory: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RunStore{
		dir: dir,
		log: logger.WithField("component", "storage"),
	}, nil
}

// Dir returns the run directory path.
func (s *RunStore) Dir() string { return s.dir }

// SaveConfig writes the fully resolved run configuration once at
// startup, for reproducibility.
func (s *RunStore) SaveConfig(cfg any) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("storage: marshal config: %w", err)
	}
	return s.writeFile(configFile, data)
}

// SaveNetwork writes the social graph as a node/edge list. The graph is
// immutable after construction, so this is written once.
func (s *RunStore) SaveNetwork(net *network.Network) error {
	return s.writeJSON(networkFile, net)
}

// SaveSnapshot writes the canonical feed and agent-state artifacts,
// overwriting previous snapshots. The two files are independent and are
// written concurrently.
func (s *RunStore) SaveSnapshot(ctx context.Context, feed *types.Feed, states map[string]agent.State) error {
	return s.saveFeedAndStates(ctx, feedFile, individualsFile, feed, states)
}

// SaveStepSnapshot writes per-step variants (feed.step_N.json,
// individuals.step_N.json) without touching the canonical files.
func (s *RunStore) SaveStepSnapshot(ctx context.Context, step int, feed *types.Feed, states map[string]agent.State) error {
	return s.saveFeedAndStates(ctx,
		stepVariant(feedFile, step), stepVariant(individualsFile, step), feed, states)
}

func (s *RunStore) saveFeedAndStates(ctx context.Context, feedName, statesName string, feed *types.Feed, states map[string]agent.State) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return s.writeJSON(feedName, feed) })
	g.Go(func() error { return s.writeJSON(statesName, states) })
	return g.Wait()
}

// stepVariant turns "feed.json" into "feed.step_7.json".
func stepVariant(name string, step int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s.step_%d%s", name[:len(name)-len(ext)], step, ext)
}

func (s *RunStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", name, err)
	}
	return s.writeFile(name, data)
}

// writeFile writes through a temp file and renames, so a crash mid-write
// never leaves a truncated artifact behind.
func (s *RunStore) writeFile(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("storage: finalize %s: %w", name, err)
	}
	s.log.WithFields(logrus.Fields{"file": name, "bytes": len(data)}).Debug("artifact written")
	return nil
}
