// Package version identifies the build in kludges, tearlines and the CLI.
package version

// Name is the program name used in PID, TID and Via lines.
const Name = "v3toss"

// Number is overridden at build time with -ldflags "-X ...version.Number=x.y.z".
var Number = "0.1.0"

// Tag returns "name/number", a single token safe for kludge lines.
func Tag() string {
	return Name + "/" + Number
}
