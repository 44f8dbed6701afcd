// Package stdx holds tiny stdlib-shaped helpers.
package stdx

// Must1 returns v, panicking if err is non-nil. For wiring done at program
// start where an error means the binary is misassembled.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
