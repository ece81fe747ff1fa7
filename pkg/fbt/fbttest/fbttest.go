// Package fbttest builds block files for tests.
package fbttest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Block describes a block file to generate.
type Block struct {
	Name      string
	Inputs    []string
	Outputs   []string
	Instances [][2]string // {instance name, type}
	Wiring    [][2]string // {source, destination}
}

// XML renders the block as an .fbt document.
func (b Block) XML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&sb, "<FBType Name=%q>\n  <InterfaceList>\n", b.Name)
	writeEvents(&sb, "EventInputs", b.Inputs)
	writeEvents(&sb, "EventOutputs", b.Outputs)
	sb.WriteString("  </InterfaceList>\n")
	if len(b.Instances) > 0 || len(b.Wiring) > 0 {
		sb.WriteString("  <FBNetwork>\n")
		for _, inst := range b.Instances {
			fmt.Fprintf(&sb, "    <FB Name=%q Type=%q />\n", inst[0], inst[1])
		}
		sb.WriteString("    <EventConnections>\n")
		for _, w := range b.Wiring {
			fmt.Fprintf(&sb, "      <Connection Source=%q Destination=%q />\n", w[0], w[1])
		}
		sb.WriteString("    </EventConnections>\n  </FBNetwork>\n")
	}
	sb.WriteString("</FBType>\n")
	return sb.String()
}

func writeEvents(sb *strings.Builder, tag string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Fprintf(sb, "    <%s>\n", tag)
	for _, n := range names {
		fmt.Fprintf(sb, "      <Event Name=%q />\n", n)
	}
	fmt.Fprintf(sb, "    </%s>\n", tag)
}

// Write stores the block at dir/rel and returns the full path.
func Write(t testing.TB, dir, rel string, b Block) string {
	t.Helper()
	return WriteRaw(t, dir, rel, b.XML())
}

// WriteRaw stores arbitrary content at dir/rel, creating parent directories.
func WriteRaw(t testing.TB, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Edge wires the block's REQ input to a freshly named instance of target.
// Instance names are "i<n>_<target>" so several edges to the same target
// stay distinct.
func (b *Block) Edge(target string) {
	inst := fmt.Sprintf("i%d_%s", len(b.Instances), target)
	b.Instances = append(b.Instances, [2]string{inst, target})
	b.Wiring = append(b.Wiring, [2]string{"REQ", inst + ".REQ"})
}

// Corpus writes one block per entry of adj, where adj maps a type name to
// the type names it wires into. Targets missing from adj get their own
// empty block so every edge resolves.
func Corpus(t testing.TB, dir string, adj map[string][]string) {
	t.Helper()
	all := make(map[string]bool)
	for src, targets := range adj {
		all[src] = true
		for _, tgt := range targets {
			all[tgt] = true
		}
	}
	for name := range all {
		b := Block{Name: name, Inputs: []string{"REQ"}, Outputs: []string{"CNF"}}
		for _, tgt := range adj[name] {
			b.Edge(tgt)
		}
		Write(t, dir, name+".fbt", b)
	}
}
