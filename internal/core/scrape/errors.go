package scrape

import perr "ghsnapshot/internal/platform/errors"

func invalidArgument(msg string) error {
	return perr.Newf(perr.ErrorCodeInvalidArgument, "scrape: %s", msg)
}
