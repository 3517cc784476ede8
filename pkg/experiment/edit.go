package experiment

import (
	"fmt"
	"strings"
)

// EditableFields lists the field names Edit accepts, plus the source:<name>
// form for reclassifying a single source.
var EditableFields = []string{
	"refant", "calsources", "polswap", "onebit", "polconvert", "pi", "email",
}

// Edit applies a validated overwrite of one metadata field. Unknown fields
// return *UnknownFieldError; values that fail validation return
// *InvalidValueError. Nothing is modified when an error is returned.
func (e *Experiment) Edit(field, value string) error {
	if name, ok := strings.CutPrefix(field, "source:"); ok {
		return e.editSourceType(name, value)
	}

	switch field {
	case "refant":
		ants, err := e.antennaList(field, value, false)
		if err != nil {
			return err
		}
		e.RefAnts = ants
	case "calsources":
		names := splitList(value)
		for _, n := range names {
			if e.SourceByName(n) == nil {
				return &InvalidValueError{Field: field, Value: n,
					Reason: fmt.Sprintf("source not observed in %s", e.Name)}
			}
		}
		e.RefSources = names
	case "polswap":
		return e.setAntennaFlag(field, value, func(a *Antenna) { a.PolSwap = true })
	case "onebit":
		return e.setAntennaFlag(field, value, func(a *Antenna) { a.OneBit = true })
	case "polconvert":
		return e.setAntennaFlag(field, value, func(a *Antenna) { a.PolConvert = true })
	case "pi":
		e.PINames = splitList(value)
	case "email":
		e.Emails = splitList(value)
	default:
		return &UnknownFieldError{Field: field}
	}
	return nil
}

// editSourceType reclassifies one source. The source must exist and the new
// role must be in the closed set.
func (e *Experiment) editSourceType(name, role string) error {
	src := e.SourceByName(name)
	if src == nil {
		return &InvalidValueError{Field: "source:" + name, Value: name,
			Reason: fmt.Sprintf("source not observed in %s", e.Name)}
	}
	t, err := ParseSourceType(role)
	if err != nil {
		return err
	}
	src.Type = t
	return nil
}

// antennaList parses a comma-separated station list, checking the code
// format and, when mustExist is set, membership in the experiment.
func (e *Experiment) antennaList(field, value string, mustExist bool) ([]string, error) {
	names := splitList(value)
	if len(names) == 0 {
		return nil, &InvalidValueError{Field: field, Value: value, Reason: "empty antenna list"}
	}
	for _, n := range names {
		if !ValidAntennaName(n) {
			return nil, &InvalidValueError{Field: field, Value: n,
				Reason: "not a station code (expected e.g. Ef, O8, Jb2)"}
		}
		if mustExist && e.AntennaByName(n) == nil {
			return nil, &InvalidValueError{Field: field, Value: n,
				Reason: fmt.Sprintf("antenna did not participate in %s", e.Name)}
		}
	}
	return names, nil
}

// setAntennaFlag validates the full list before mutating any antenna, so a
// rejected edit leaves the experiment untouched.
func (e *Experiment) setAntennaFlag(field, value string, set func(*Antenna)) error {
	names, err := e.antennaList(field, value, true)
	if err != nil {
		return err
	}
	for _, n := range names {
		set(e.AntennaByName(n))
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
