package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/aliquot/pkg/domain"
)

// Overlay marks the wells a run has already touched.
type Overlay struct {
	VisitedWells []string
	CurrentWell  string
}

type edge struct {
	from, to string
	label    string
	step     int
}

// GenerateMermaid renders the liquid flow of a protocol as a Mermaid
// flowchart: one subgraph per labware, one node per touched well and one
// edge per liquid move. Transfers are drawn from their source and
// destination lists; a bare aspirate is paired with the next dispense on the
// same mount.
func GenerateMermaid(proto *domain.Protocol, overlay *Overlay) string {
	edges := flowEdges(proto)

	wells := make(map[string]map[string]bool) // labware -> wells
	add := func(ref string) {
		id, name, err := domain.ParseWellRef(ref)
		if err != nil {
			return
		}
		if wells[id] == nil {
			wells[id] = make(map[string]bool)
		}
		wells[id][name] = true
	}
	for _, e := range edges {
		add(e.from)
		add(e.to)
	}

	labels := make(map[string]string, len(proto.Labware))
	for _, lw := range proto.Labware {
		if lw.Label != "" {
			labels[lw.ID] = lw.Label
		}
	}

	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, id := range sortedKeys(wells) {
		label := labels[id]
		if label == "" {
			label = id
		}
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", sanitizeMermaidID(id), escape(label))
		for _, name := range sortedKeys(wells[id]) {
			fmt.Fprintf(&sb, "        %s((\"%s\"))\n", sanitizeMermaidID(id+"/"+name), name)
		}
		sb.WriteString("    end\n")
	}

	for _, e := range edges {
		fmt.Fprintf(&sb, "    %s -- \"%d: %s\" --> %s\n",
			sanitizeMermaidID(e.from), e.step, escape(e.label), sanitizeMermaidID(e.to))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		seen := make(map[string]bool)
		for _, ref := range overlay.VisitedWells {
			id := sanitizeMermaidID(ref)
			if id != "" && !seen[id] {
				seen[id] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", id)
			}
		}
		if overlay.CurrentWell != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentWell))
		}
	}
	return sb.String()
}

func flowEdges(proto *domain.Protocol) []edge {
	var edges []edge
	held := make(map[string]string) // mount -> last aspirated well
	for i, cmd := range proto.Commands {
		step := i + 1
		p := cmd.Params
		switch cmd.Command {
		case "transfer", "distribute", "consolidate":
			label := cmd.Command + " " + volumeLabel(p["volume"])
			for _, pr := range pairs(refs(p, "source", "sources"), refs(p, "dest", "dests")) {
				edges = append(edges, edge{from: pr[0], to: pr[1], label: label, step: step})
			}
		case "aspirate":
			if w, ok := p["well"].(string); ok {
				held[mountOf(p)] = w
			}
		case "dispense":
			from, loaded := held[mountOf(p)]
			to, ok := p["well"].(string)
			if loaded && ok {
				edges = append(edges, edge{from: from, to: to, label: volumeLabel(p["volume"]), step: step})
			}
		case "drop_tip", "return_tip":
			delete(held, mountOf(p))
		}
	}
	return edges
}

// pairs follows transfer expansion: one-to-many, many-to-one or pairwise.
func pairs(sources, dests []string) [][2]string {
	var out [][2]string
	switch {
	case len(sources) == 1:
		for _, d := range dests {
			out = append(out, [2]string{sources[0], d})
		}
	case len(dests) == 1:
		for _, s := range sources {
			out = append(out, [2]string{s, dests[0]})
		}
	default:
		for i := 0; i < len(sources) && i < len(dests); i++ {
			out = append(out, [2]string{sources[i], dests[i]})
		}
	}
	return out
}

func refs(p map[string]any, one, many string) []string {
	var out []string
	if s, ok := p[one].(string); ok && s != "" {
		out = append(out, s)
	}
	switch vs := p[many].(type) {
	case []any:
		for _, v := range vs {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, vs...)
	}
	return out
}

func mountOf(p map[string]any) string {
	m, _ := p["mount"].(string)
	return m
}

func volumeLabel(v any) string {
	switch vol := v.(type) {
	case nil:
		return ""
	case map[string]any:
		return fmt.Sprintf("%v→%v µL", vol["start"], vol["end"])
	case []any:
		return "per-well µL"
	}
	return fmt.Sprintf("%v µL", v)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
