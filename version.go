package grokchat

const version = "0.1.0"

// CodeVersion returns the version of the grokchat code.
func CodeVersion() string {
	return version
}
