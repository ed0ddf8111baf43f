package depresolve

import (
	"errors"
	"fmt"

	"golang.org/x/mod/module"
)

// A ModuleID identifies a module independent of version: a (group, name) pair, as described in the
// data model's "Module identity" row.
type ModuleID struct {
	Group string
	Name  string
}

func (m ModuleID) String() string {
	return m.Group + ":" + m.Name
}

// path returns a slash-joined form suitable for reuse of [golang.org/x/mod/module.CheckPath]'s
// syntax checks, which is stricter than this package needs but catches the obviously malformed
// identifiers (empty segments, whitespace, uppercase-without-escaping) cheaply.
func (m ModuleID) path() string {
	return m.Group + "/" + m.Name
}

// Check reports whether m has a non-empty group and name and whether "group/name" passes
// [golang.org/x/mod/module.CheckPath], which among other things requires a dot in the group.
func (m ModuleID) Check() error {
	if m.Group == "" {
		return errors.New("module group is empty")
	}
	if m.Name == "" {
		return errors.New("module name is empty")
	}
	if err := module.CheckPath(m.path()); err != nil {
		return fmt.Errorf("module id %v: %w", m, err)
	}
	return nil
}

// A ModuleVersionID identifies a specific version of a module: a (group, name, version) triple, as
// described in the data model.
type ModuleVersionID struct {
	ModuleID
	Version string
}

func (m ModuleVersionID) String() string {
	return fmt.Sprintf("%v:%v", m.ModuleID, m.Version)
}

// Check reports whether m has a non-empty version in addition to passing [ModuleID.Check].
func (m ModuleVersionID) Check() error {
	if err := m.ModuleID.Check(); err != nil {
		return err
	}
	if m.Version == "" {
		return errors.New("version is the empty string")
	}
	return nil
}

// A ComponentID is an opaque identifier assigned by an [IdResolver]. It may or may not correspond to
// a [ModuleVersionID] (the resolver might, for example, hand back a placeholder id for a component
// that turned out not to exist). The core never interprets a ComponentID beyond equality and
// logging; it is comparable so it can key maps in [ResolveState].
type ComponentID string

// ComponentIDOf derives the conventional [ComponentID] for a resolved module version. Callers
// providing their own [IdResolver] are free to mint component ids however they like; this helper
// exists because the vast majority of resolutions do correspond directly to a module version.
func ComponentIDOf(mvi ModuleVersionID) ComponentID {
	return ComponentID(mvi.String())
}
