package docflow

// ReportStart tells the progress reporter that the current node started,
// with its position in the chain selected by s.
func ReportStart(ctx Context, s State) {
	step, total := position(Route(s), ctx.NodeID())
	ctx.Progress().NodeStart(ctx, string(ctx.NodeID()), step, total)
}

// ReportEnd tells the progress reporter that the current node finished.
func ReportEnd(ctx Context, success bool, details string) {
	ctx.Progress().NodeEnd(ctx, string(ctx.NodeID()), success, details)
}

// ReportMetric forwards a named measurement to the progress reporter.
func ReportMetric(ctx Context, name string, value float64, unit string) {
	ctx.Progress().Metric(ctx, name, value, unit)
}
