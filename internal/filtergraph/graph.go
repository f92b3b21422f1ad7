package filtergraph

import "strings"

// Arg is one filter option. An empty Key renders the value positionally.
type Arg struct {
	Key   string
	Value string
}

// Stage is a single filter with labelled input and output pads.
type Stage struct {
	Inputs  []string
	Filter  string
	Args    []Arg
	Outputs []string
}

// Graph is an ordered list of stages. Output names the final video pad.
type Graph struct {
	Stages []Stage
	Output string
}

func (g *Graph) add(inputs []string, filter string, outputs []string, args ...Arg) {
	g.Stages = append(g.Stages, Stage{Inputs: inputs, Filter: filter, Args: args, Outputs: outputs})
}

func kv(key, value string) Arg {
	return Arg{Key: key, Value: value}
}

func pads(labels ...string) []string {
	return labels
}

// String serializes the graph for -filter_complex.
func (g Graph) String() string {
	parts := make([]string, 0, len(g.Stages))
	for _, st := range g.Stages {
		parts = append(parts, st.String())
	}
	return strings.Join(parts, ";")
}

func (st Stage) String() string {
	var b strings.Builder
	for _, in := range st.Inputs {
		b.WriteString("[" + in + "]")
	}
	b.WriteString(st.Filter)
	if len(st.Args) > 0 {
		b.WriteString("=")
		for i, a := range st.Args {
			if i > 0 {
				b.WriteString(":")
			}
			if a.Key != "" {
				b.WriteString(a.Key + "=")
			}
			b.WriteString(quote(a.Value))
		}
	}
	for _, out := range st.Outputs {
		b.WriteString("[" + out + "]")
	}
	return b.String()
}

// quote wraps values containing graph separators in single quotes.
func quote(v string) string {
	if !strings.ContainsAny(v, ",:;[]' ") {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}
