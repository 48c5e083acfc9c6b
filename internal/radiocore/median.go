package radiocore

import "gonum.org/v1/gonum/floats"

// median sorts arr in place and returns the middle element, matching
// RadioTask.c's median() (qsort + arr[sz>>1] — not a true median for even
// sizes, but that imprecision is harmless here since every call site uses a
// fixed, small, odd-leaning window). Sorting goes through gonum/floats
// rather than sort.Slice.
func median(arr []uint32) uint32 {
	f := make([]float64, len(arr))
	for i, v := range arr {
		f[i] = float64(v)
	}
	floats.Sort(f)
	return uint32(f[len(f)>>1])
}
