package regex

// CompileOptions configures Compile (§6; the ambient "Configuration"
// surface named in SPEC_FULL.md, reshaped from the teacher's own
// compiler.Config).
type CompileOptions struct {
	// Verbose enables compiler-pipeline stage diagnostics (capture group
	// count, TNFA state count, TDFA state counts pre/post optimization) on
	// stderr. Register-coalescing results are not logged.
	Verbose bool
	// MaxTDFAStates ceilings the determinized TDFA's state count, checked
	// right after determinization and before optimization; 0 means no
	// ceiling. A pattern that exceeds it fails compilation with a
	// FeatureUnsupportedError instead of silently building an enormous
	// machine.
	MaxTDFAStates int
}
