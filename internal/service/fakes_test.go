package service

import "context"

// fakeThrottle is an in-memory LoginThrottle.
type fakeThrottle struct {
	failures map[string]int64
	max      int64
	checkErr error
}

func newFakeThrottle(max int64) *fakeThrottle {
	return &fakeThrottle{failures: make(map[string]int64), max: max}
}

func (f *fakeThrottle) Check(_ context.Context, username string) error {
	if f.checkErr != nil {
		return f.checkErr
	}
	if f.failures[username] >= f.max {
		return errRateLimitedForTest
	}
	return nil
}

func (f *fakeThrottle) RecordFailure(_ context.Context, username string) (int64, error) {
	f.failures[username]++
	return f.failures[username], nil
}

func (f *fakeThrottle) Reset(_ context.Context, username string) error {
	delete(f.failures, username)
	return nil
}
