// Package detectors implements the secret detectors applied to live source
// chunks. A detector is pure: given the same bytes it returns the same
// candidates, holds no state between calls and runs in time linear in the
// chunk size.
package detectors
