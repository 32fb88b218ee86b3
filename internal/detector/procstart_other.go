//go:build !linux

package detector

func procStatStart(int) int64 { return 0 }
