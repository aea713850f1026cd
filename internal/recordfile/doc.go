// Package recordfile reads MARC-in-JSON records from disk for the CLI.
//
// Three layouts are accepted:
//
//   - a single record object
//   - a JSON array of record objects
//   - JSON lines, one record per line, blank lines ignored
//
// A record may also be given as a JSON string that contains the object, the
// same shape the backend sometimes returns from a read. Errors in JSON-lines
// input name the offending line; errors in arrays name the element.
//
// The path "-" reads standard input.
package recordfile
