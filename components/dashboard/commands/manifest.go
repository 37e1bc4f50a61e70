package commands

import (
	"context"
	"errors"
	"fmt"

	gocommand "github.com/goliatone/go-command"
	dashboard "github.com/goliatone/go-supply-dashboard/components/dashboard"
)

// LoadManifestsInput lists entity manifest files to register.
type LoadManifestsInput struct {
	Paths []string
}

type manifestRegistry interface {
	LoadManifestFile(path string) (*dashboard.EntityManifestDocument, error)
}

// LoadManifestsCommand registers extra entity tables from YAML manifests at startup.
type LoadManifestsCommand struct {
	registry  manifestRegistry
	telemetry Telemetry
}

// NewLoadManifestsCommand wires dependencies.
func NewLoadManifestsCommand(registry manifestRegistry, telemetry Telemetry) *LoadManifestsCommand {
	return &LoadManifestsCommand{registry: registry, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[LoadManifestsInput] = (*LoadManifestsCommand)(nil)

// Execute loads each manifest, stopping at the first failure.
func (c *LoadManifestsCommand) Execute(ctx context.Context, msg LoadManifestsInput) error {
	if c.registry == nil {
		return errors.New("manifest command requires registry")
	}
	entities := 0
	for _, path := range msg.Paths {
		doc, err := c.registry.LoadManifestFile(path)
		if err != nil {
			return fmt.Errorf("load manifest %s: %w", path, err)
		}
		entities += len(doc.Entities)
	}
	c.telemetry.Record(ctx, "dashboard.manifests.load", map[string]any{
		"files":    len(msg.Paths),
		"entities": entities,
	})
	return nil
}
