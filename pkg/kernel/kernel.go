// Package kernel defines the surface abstraction the voxelizer samples.
// Implementations (sdfx, trimesh) answer nearest-point queries against
// their own geometry representation; the voxel core only ever sees the
// Surface interface and never depends on how a query is computed.
package kernel

import "github.com/chazu/voxelizer/pkg/geom"

// Surface is an input surface the voxelizer can approximate.
type Surface interface {
	// Name identifies the surface in logs and selections.
	Name() string

	// Vertices returns the surface's vertex positions. The bounding box of
	// the voxelization is computed from these.
	Vertices() []geom.Vec3

	// NearestPoint returns the closest point on the surface to p.
	// ok is false when the query could not be answered.
	// Implementations must be safe for concurrent use.
	NearestPoint(p geom.Vec3) (closest geom.Vec3, ok bool)
}
