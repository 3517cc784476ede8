package steps

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jive-vlbi/evnpp/pkg/experiment"
)

// msInfoScript dumps the measurement-set facts the metadata keeps: the
// observation time range, the field and antenna names, and the subband
// setup. It runs through python-casacore on the processing host, one
// "key values..." line per fact.
const msInfoScript = `
import sys, datetime
from casacore import tables as pt

ms = sys.argv[1]
mjd0 = datetime.datetime(1858, 11, 17)
with pt.table(ms, ack=False) as t:
    times = t.getcol('TIME')
    for label, val in (('start', times.min()), ('end', times.max())):
        print(label, (mjd0 + datetime.timedelta(seconds=float(val))).strftime('%Y-%m-%dT%H:%M:%S'))
with pt.table(ms + '::FIELD', ack=False) as t:
    print('sources', *t.getcol('NAME'))
with pt.table(ms + '::ANTENNA', ack=False) as t:
    print('antennas', *t.getcol('NAME'))
with pt.table(ms + '::SPECTRAL_WINDOW', ack=False) as t:
    print('subbands', t.nrows())
    print('channels', *t.getcol('NUM_CHAN'))
    print('bandwidths', *t.getcol('TOTAL_BANDWIDTH'))
    for row in t.getcol('CHAN_FREQ'):
        print('frequencies', *row)
`

// msInfo is the decoded script output for one measurement set.
type msInfo struct {
	start, end  time.Time
	sources     []string
	antennas    []string
	nsub        int
	channels    []int
	bandwidths  []float64
	frequencies [][]float64
}

const msTimeLayout = "2006-01-02T15:04:05"

// parseMSInfo decodes the script output. Unknown lines are ignored; an
// output with no recognizable facts at all (a dry run, say) yields nil.
func parseMSInfo(output string) (*msInfo, error) {
	var info msInfo
	seen := false

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key, rest := fields[0], fields[1:]
		var err error
		switch key {
		case "start":
			info.start, err = time.Parse(msTimeLayout, rest[0])
		case "end":
			info.end, err = time.Parse(msTimeLayout, rest[0])
		case "sources":
			info.sources = rest
		case "antennas":
			info.antennas = rest
		case "subbands":
			info.nsub, err = strconv.Atoi(rest[0])
		case "channels":
			info.channels, err = parseInts(rest)
		case "bandwidths":
			info.bandwidths, err = parseFloats(rest)
		case "frequencies":
			var row []float64
			if row, err = parseFloats(rest); err == nil {
				info.frequencies = append(info.frequencies, row)
			}
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("metadata line %q: %w", line, err)
		}
		seen = true
	}

	if !seen {
		return nil, nil
	}
	return &info, nil
}

func parseInts(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// readMSMetadata fills one pass and the experiment-wide time range from the
// measurement set. Stations found in the ANTENNA table are marked observed.
// Returns nil info when the set reported nothing usable.
func readMSMetadata(c *Context, p *experiment.CorrelatorPass) (*msInfo, error) {
	exp := c.Exp

	res, err := c.Run("", "python3", "-c", msInfoScript, p.MSFile)
	if err != nil {
		return nil, err
	}
	info, err := parseMSInfo(string(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("read %s metadata: %w", p.MSFile, err)
	}
	if info == nil {
		return nil, nil
	}

	p.Sources = info.sources
	if info.nsub > 0 {
		setup, err := experiment.NewSubbands(info.nsub, info.channels, info.frequencies, info.bandwidths)
		if err != nil {
			return nil, fmt.Errorf("%s frequency setup: %w", p.MSFile, err)
		}
		p.FreqSetup = setup
	}

	if !info.start.IsZero() && (exp.StartTime.IsZero() || info.start.Before(exp.StartTime)) {
		exp.StartTime = info.start
	}
	if info.end.After(exp.EndTime) {
		exp.EndTime = info.end
	}

	for _, name := range info.antennas {
		if a := exp.AntennaByName(name); a != nil {
			a.Observed = true
			continue
		}
		exp.Antennas = append(exp.Antennas, experiment.Antenna{Name: name, Observed: true})
	}
	return info, nil
}
