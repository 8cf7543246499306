package e2k

import "github.com/VOICEVOX/e2k/internal/archive"

// ModelFormatError reports a corrupt, truncated or version-incompatible
// model archive. Loading is all-or-nothing; there is no partial or degraded
// load. Match with errors.As:
//
//	var fmtErr *e2k.ModelFormatError
//	if errors.As(err, &fmtErr) { ... }
type ModelFormatError = archive.FormatError
