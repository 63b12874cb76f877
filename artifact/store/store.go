// Package store uploads deployment packages to the object storage the platform deploys from.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartcontractkit/beamline/artifact"
	"github.com/smartcontractkit/beamline/platform"
)

// DefaultChannel is the key prefix packages are stored under.
const DefaultChannel = "RELEASE/FORK"

// Store uploads a package and returns where the platform can read it from.
type Store interface {
	Put(ctx context.Context, key string, a *artifact.Artifact) (platform.CodeLocation, error)
}

// Key returns the deterministic object key of the package of project built for identity.
func Key(channel, project, identity string) string {
	if channel == "" {
		channel = DefaultChannel
	}

	return fmt.Sprintf("%s/%s-%s.zip", strings.Trim(channel, "/"), project, identity)
}

// BucketName returns the regional bucket name for prefix.
func BucketName(prefix, region string) string {
	return prefix + "-" + region
}
