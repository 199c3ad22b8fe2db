package git

// Non-printable delimiters keep parsing unambiguous: commit messages can
// contain any printable text, but never these control bytes.
const (
	// RecordSep starts each commit record in log output.
	RecordSep = "\x01"
	// FieldSep separates fields within one record.
	FieldSep = "\x00"
)

// LogFormat is the field layout the ingestor parses. Fields, in order:
// full hash, abbreviated hash, parent hashes, author name/email/date,
// committer name/email/date, subject, body.
const LogFormat = RecordSep +
	"%H" + FieldSep +
	"%h" + FieldSep +
	"%P" + FieldSep +
	"%an" + FieldSep +
	"%ae" + FieldSep +
	"%aI" + FieldSep +
	"%cn" + FieldSep +
	"%ce" + FieldSep +
	"%cI" + FieldSep +
	"%s" + FieldSep +
	"%b"
