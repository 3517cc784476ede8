package steps

// DefaultRegistry returns the EVN post-processing catalogue. The order
// follows the data flow from the correlator output to the archived pipeline
// results; each step requires the one before it.
func DefaultRegistry() *Registry {
	r, err := NewRegistry([]Definition{
		{
			Name:    "discover",
			Title:   "Locate the observation and set up the working area",
			Outputs: []string{"obsdate", "eevn", "expsum", "piletter", "credentials"},
			Run:     stepDiscover,
		},
		{
			Name:        "retrieve",
			Title:       "Create lis files and fetch the correlation output",
			Predecessor: "discover",
			Outputs:     []string{"lisfiles", "passes"},
			Run:         stepRetrieve,
		},
		{
			Name:        "convert",
			Title:       "Build measurement sets with j2ms2",
			Predecessor: "retrieve",
			Outputs:     []string{"msfiles"},
			Run:         stepConvert,
		},
		{
			Name:        "plot",
			Title:       "Run standardplots and review them",
			Predecessor: "convert",
			Outputs:     []string{"refant", "plotsources"},
			Run:         stepPlot,
		},
		{
			Name:        "calibrate-flag",
			Title:       "Choose a weight threshold and flag the data",
			Predecessor: "plot",
			Outputs:     []string{"threshold", "flagged_percent"},
			Run:         stepCalibrateFlag,
		},
		{
			Name:        "ms-operations",
			Title:       "Station fixes on the measurement sets",
			Predecessor: "calibrate-flag",
			Outputs:     []string{"operations"},
			Run:         stepMSOperations,
		},
		{
			Name:        "format-convert",
			Title:       "Convert to FITS-IDI with tConvert",
			Predecessor: "ms-operations",
			Outputs:     []string{"fitsfiles", "polconverted"},
			Run:         stepFormatConvert,
		},
		{
			Name:        "archive",
			Title:       "Archive credentials, plots and FITS files",
			Predecessor: "format-convert",
			Outputs:     []string{"archived"},
			Run:         stepArchive,
		},
		{
			Name:        "pipeline-prep",
			Title:       "Prepare antab, uvflg and pipeline input files",
			Predecessor: "archive",
			When:        "pipeline_passes > 0",
			Outputs:     []string{"antab", "inputs"},
			Run:         stepPipelinePrep,
		},
		{
			Name:        "pipeline-run",
			Title:       "Run the EVN pipeline",
			Predecessor: "pipeline-prep",
			When:        "pipeline_passes > 0",
			Outputs:     []string{"pipelined"},
			Run:         stepPipelineRun,
		},
		{
			Name:        "pipeline-check",
			Title:       "Review and archive the pipeline results",
			Predecessor: "pipeline-run",
			When:        "pipeline_passes > 0",
			Outputs:     []string{"feedback"},
			Run:         stepPipelineCheck,
		},
		{
			Name:        "finalize",
			Title:       "Send the PI letter and close the experiment",
			Predecessor: "pipeline-check",
			Outputs:     []string{"letter"},
			Run:         stepFinalize,
		},
	})
	if err != nil {
		// The catalogue above is a compile-time constant in all but syntax.
		panic(err)
	}
	return r
}
