package port

import "context"

// FailureNotice tells a user that a job was given up on.
type FailureNotice struct {
	UserEmail string
	JobID     string
	VideoKey  string
	Reason    string
	Attempts  int
}

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, notice FailureNotice) error
}
