package steps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jive-vlbi/evnpp/pkg/config"
)

// Tool is one entry of the ad-hoc command table behind `exec`: a single
// post-processing program run against the stored metadata, outside the
// step sequence.
type Tool struct {
	Name        string
	Description string
	// Command is the program to launch; extra exec arguments are appended.
	Command string
	// HostRole picks the host the tool runs on.
	HostRole func(*config.Settings) string
	// DefaultArgs derives the standing arguments from the experiment.
	DefaultArgs func(*Context) []string
}

func localHost(*config.Settings) string        { return "" }
func correlatorHost(s *config.Settings) string { return s.Hosts.Correlator }
func pipelineHost(s *config.Settings) string   { return s.Hosts.Pipeline }
func archiveHost(s *config.Settings) string    { return s.Hosts.Archive }

func firstLis(c *Context) []string {
	if len(c.Exp.Passes) > 0 {
		return []string{c.Exp.Passes[0].LisFile}
	}
	return []string{strings.ToLower(c.Exp.Name) + ".lis"}
}

func firstMS(c *Context) []string {
	if len(c.Exp.Passes) > 0 {
		return []string{c.Exp.Passes[0].MSFile}
	}
	return []string{strings.ToLower(c.Exp.Name) + ".ms"}
}

// toolTable lists every command `exec` accepts.
var toolTable = map[string]Tool{
	"checklis": {
		Name: "checklis", Description: "verify a lis file",
		Command: "checklis.py", HostRole: localHost, DefaultArgs: firstLis,
	},
	"getdata": {
		Name: "getdata", Description: "fetch correlation output for a lis file",
		Command: "getdata.pl", HostRole: localHost,
		DefaultArgs: func(c *Context) []string {
			return []string{"-proj", ccsName(c.Exp), "-lis", firstLis(c)[0]}
		},
	},
	"j2ms2": {
		Name: "j2ms2", Description: "rebuild the measurement set from a lis file",
		Command: "j2ms2", HostRole: localHost,
		DefaultArgs: func(c *Context) []string { return []string{"-v", firstLis(c)[0]} },
	},
	"standardplots": {
		Name: "standardplots", Description: "regenerate the standard plots",
		Command: "standardplots", HostRole: localHost,
		DefaultArgs: func(c *Context) []string {
			refant := c.Exp.DefaultRefAnt()
			if len(c.Exp.RefAnts) > 0 {
				refant = c.Exp.RefAnts[0]
			}
			return []string{firstMS(c)[0], refant, strings.Join(c.Exp.PlotSources(), ",")}
		},
	},
	"ysfocus": {
		Name: "ysfocus", Description: "apply the Yebes focus correction",
		Command: "ysfocus.py", HostRole: localHost, DefaultArgs: firstMS,
	},
	"flag_weights": {
		Name: "flag_weights", Description: "drop visibilities below a weight threshold",
		Command: "flag_weights.py", HostRole: localHost, DefaultArgs: firstMS,
	},
	"tconvert": {
		Name: "tconvert", Description: "convert a measurement set to FITS-IDI",
		Command: "tConvert", HostRole: localHost,
		DefaultArgs: func(c *Context) []string {
			if len(c.Exp.Passes) > 0 {
				return []string{c.Exp.Passes[0].MSFile, c.Exp.Passes[0].FitsIDIFile}
			}
			return nil
		},
	},
	"archive": {
		Name: "archive", Description: "push files to the EVN archive",
		Command: "archive.pl", HostRole: archiveHost,
		DefaultArgs: func(c *Context) []string {
			return []string{"-e", strings.ToLower(c.Exp.Name) + "_" + c.Exp.ObsDate}
		},
	},
	"uvflgall": {
		Name: "uvflgall", Description: "regenerate the uvflg flags on the pipeline host",
		Command: "uvflgall.csh", HostRole: pipelineHost,
	},
	"make_lis": {
		Name: "make_lis", Description: "recreate the lis files on the correlator host",
		Command: "/ccs/bin/make_lis", HostRole: correlatorHost,
		DefaultArgs: func(c *Context) []string { return []string{"-e", ccsName(c.Exp)} },
	},
}

// LookupTool resolves an exec command name. Unknown names report the
// available table.
func LookupTool(name string) (Tool, error) {
	t, ok := toolTable[name]
	if !ok {
		return Tool{}, fmt.Errorf("unknown command %q (available: %s)", name, strings.Join(ToolNames(), ", "))
	}
	return t, nil
}

// ToolNames lists the exec table alphabetically.
func ToolNames() []string {
	names := make([]string, 0, len(toolTable))
	for name := range toolTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunTool executes one table entry. Extra args are passed through after the
// derived defaults; when the operator supplies args, the defaults are
// dropped entirely.
func RunTool(c *Context, name string, args []string) error {
	t, err := LookupTool(name)
	if err != nil {
		return err
	}
	argv := args
	if len(argv) == 0 && t.DefaultArgs != nil {
		argv = t.DefaultArgs(c)
	}
	res, err := c.Run(t.HostRole(c.Cfg), t.Command, argv...)
	if err != nil {
		return err
	}
	if len(res.Stdout) > 0 {
		c.Log.Infof("%s:\n%s", name, strings.TrimSpace(string(res.Stdout)))
	}
	return nil
}
