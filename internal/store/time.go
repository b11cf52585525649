package store

import "time"

func timeToUnix(t time.Time) int64 {
	return t.UTC().Unix()
}

func unixToTime(u int64) time.Time {
	return time.Unix(u, 0).UTC()
}
