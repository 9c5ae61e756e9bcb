package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/app"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/runtime"
)

// groupInfo is the resolved part of one catalog group.
type groupInfo struct {
	group     abi.Group
	available []string
	total     int
}

func groups(rt *runtime.Runtime) []groupInfo {
	infos := make([]groupInfo, 0, len(abi.Groups))
	for _, g := range abi.Groups {
		infos = append(infos, groupInfo{
			group:     g,
			available: rt.Available(g),
			total:     len(abi.Symbols(g)),
		})
	}
	return infos
}

// staticInfo is the metadata a runtime reports through the static facade.
// Missing static entry points leave the matching slice empty.
type staticInfo struct {
	components []abi.StaticComponentInfo
	systems    []abi.StaticSystemInfo
	actions    []abi.StaticActionInfo
}

func static(rt *runtime.Runtime) (staticInfo, error) {
	var (
		info staticInfo
		err  error
	)
	if info.components, err = rt.Static().Components(); err != nil && !missing(err) {
		return info, err
	}
	if info.systems, err = rt.Static().Systems(); err != nil && !missing(err) {
		return info, err
	}
	if info.actions, err = rt.Static().Actions(); err != nil && !missing(err) {
		return info, err
	}
	return info, nil
}

func missing(err error) bool {
	return errors.IsKind(err, errors.KindMissingEntryPoint)
}

// registryInfo is a registry known to the runtime with its entity count, or
// -1 when it cannot be counted.
type registryInfo struct {
	name     string
	id       abi.RegistryID
	entities int
}

func registries(rt *runtime.Runtime) []registryInfo {
	var infos []registryInfo
	for id, name := range rt.Core().Registries() {
		n, err := rt.Core().CountEntities(id)
		if err != nil {
			n = -1
		}
		infos = append(infos, registryInfo{name: name, id: id, entities: n})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].id < infos[j].id })
	return infos
}

func capabilities(caps []abi.Capability) string {
	parts := make([]string, len(caps))
	for i, c := range caps {
		parts[i] = fmt.Sprintf("%d:%s", c.Component, c.Flags)
	}
	return strings.Join(parts, " ")
}

func printSummary(w io.Writer, c *app.Context) {
	rt := c.Runtime()

	fmt.Fprintf(w, "Libraries: %s\n", strings.Join(rt.Libraries(), ", "))

	fmt.Fprintf(w, "\nEntry points:\n")
	for _, g := range groups(rt) {
		fmt.Fprintf(w, "  %-10s %d/%d\n", g.group, len(g.available), g.total)
		for _, name := range g.available {
			fmt.Fprintf(w, "    %s\n", name)
		}
	}

	info, err := static(rt)
	if err != nil {
		fmt.Fprintf(w, "\nStatic metadata: %v\n", err)
	} else {
		if len(info.components) > 0 {
			fmt.Fprintf(w, "\nComponents:\n")
			for _, comp := range info.components {
				transient := ""
				if comp.Transient {
					transient = " transient"
				}
				fmt.Fprintf(w, "  %d %s (%d bytes)%s\n", comp.ID, comp.Name, comp.Size, transient)
			}
		}
		if len(info.systems) > 0 {
			fmt.Fprintf(w, "\nSystems:\n")
			for _, s := range info.systems {
				fmt.Fprintf(w, "  %d %s order=%d parent=%d [%s]\n", s.ID, s.Name, s.Order, s.Parent, capabilities(s.Capabilities))
			}
		}
		if len(info.actions) > 0 {
			fmt.Fprintf(w, "\nActions:\n")
			for _, a := range info.actions {
				fmt.Fprintf(w, "  %d %s (%d bytes) [%s]\n", a.ID, a.Name, a.Size, capabilities(a.Capabilities))
			}
		}
	}

	if regs := registries(rt); len(regs) > 0 {
		fmt.Fprintf(w, "\nRegistries:\n")
		for _, r := range regs {
			fmt.Fprintf(w, "  %d %s entities=%d\n", r.id, r.name, r.entities)
		}
	}
}
