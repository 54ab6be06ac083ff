// Package referenceframe resolves rigid transforms between named coordinate frames.
package referenceframe

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"go.viam.com/posefusion/spatialmath"
)

// World is the string "world", but made into an exported constant.
const World = "world"

// Frame is a named coordinate frame fixed relative to its parent.
type Frame struct {
	Name string
	// ToParent moves points expressed in this frame into the parent frame.
	ToParent spatialmath.Transform
}

// StaticFrameSystem is a tree of frames rooted at World whose transforms never change. It answers
// every lookup the same way regardless of the requested time.
type StaticFrameSystem struct {
	mu      sync.RWMutex
	name    string
	frames  map[string]Frame
	parents map[string]string
}

// NewEmptyStaticFrameSystem creates a frame system containing only World.
func NewEmptyStaticFrameSystem(name string) *StaticFrameSystem {
	return &StaticFrameSystem{
		name:    name,
		frames:  map[string]Frame{},
		parents: map[string]string{},
	}
}

// Name returns the name of the frame system.
func (sfs *StaticFrameSystem) Name() string {
	return sfs.name
}

// frameExists is a helper function to see if a frame with a given name already exists in the system.
func (sfs *StaticFrameSystem) frameExists(name string) bool {
	if name == World {
		return true
	}
	_, ok := sfs.frames[name]
	return ok
}

// AddFrame inserts a frame as a child of parent.
func (sfs *StaticFrameSystem) AddFrame(name, parent string, toParent spatialmath.Transform) error {
	sfs.mu.Lock()
	defer sfs.mu.Unlock()
	if !sfs.frameExists(parent) {
		return NewParentFrameMissingError(parent)
	}
	if sfs.frameExists(name) {
		return NewFrameAlreadyExistsError(name)
	}
	sfs.frames[name] = Frame{Name: name, ToParent: toParent}
	sfs.parents[name] = parent
	return nil
}

// FrameNames returns the sorted names of every frame other than World.
func (sfs *StaticFrameSystem) FrameNames() []string {
	sfs.mu.RLock()
	defer sfs.mu.RUnlock()
	names := make([]string, 0, len(sfs.frames))
	for k := range sfs.frames {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// TracebackFrame traces the parentage of the named frame up to the world. The list includes both
// the query frame and World.
func (sfs *StaticFrameSystem) TracebackFrame(name string) ([]string, error) {
	sfs.mu.RLock()
	defer sfs.mu.RUnlock()
	return sfs.traceback(name)
}

func (sfs *StaticFrameSystem) traceback(name string) ([]string, error) {
	if !sfs.frameExists(name) {
		return nil, NewFrameMissingError(name)
	}
	chain := []string{name}
	for name != World {
		name = sfs.parents[name]
		chain = append(chain, name)
	}
	return chain, nil
}

// toWorld composes the transforms from the named frame up to World.
func (sfs *StaticFrameSystem) toWorld(name string) (spatialmath.Transform, error) {
	chain, err := sfs.traceback(name)
	if err != nil {
		return spatialmath.Transform{}, err
	}
	tf := spatialmath.NewIdentityTransform()
	for _, f := range chain {
		if f == World {
			break
		}
		// parents are applied after children, so they go on the left
		tf = sfs.frames[f].ToParent.Compose(tf)
	}
	return tf, nil
}

// LookupTransform returns the transform that moves points from source into target. The time is
// ignored because every frame is static.
func (sfs *StaticFrameSystem) LookupTransform(
	ctx context.Context,
	target, source string,
	_ time.Time,
) (spatialmath.Transform, error) {
	if err := ctx.Err(); err != nil {
		return spatialmath.Transform{}, err
	}
	sfs.mu.RLock()
	defer sfs.mu.RUnlock()
	srcToWorld, err := sfs.toWorld(source)
	if err != nil {
		return spatialmath.Transform{}, err
	}
	dstToWorld, err := sfs.toWorld(target)
	if err != nil {
		return spatialmath.Transform{}, err
	}
	// source to world, then world to target
	return dstToWorld.Inverse().Compose(srcToWorld), nil
}

// String prints out a table of each frame in the system, with columns of name, parent, translation
// and orientation.
func (sfs *StaticFrameSystem) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Parent", "Translation", "Orientation"})
	t.AppendRow(table.Row{"0", World, "", "", ""})
	for i, name := range sfs.FrameNames() {
		sfs.mu.RLock()
		f, parent := sfs.frames[name], sfs.parents[name]
		sfs.mu.RUnlock()
		tra, rot := f.ToParent.Translation, f.ToParent.Rotation
		t.AppendRow(table.Row{
			fmt.Sprintf("%d", i+1),
			name,
			parent,
			fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", tra.X, tra.Y, tra.Z),
			fmt.Sprintf("W:%.3f, X:%.3f, Y:%.3f, Z:%.3f", rot.Real, rot.Imag, rot.Jmag, rot.Kmag),
		})
	}
	return t.Render()
}
