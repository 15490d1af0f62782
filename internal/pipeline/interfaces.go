package pipeline

import (
	"context"

	"github.com/dvloznov/charge-mapping/internal/matcher"
)

// Publisher stores the joined records of a run outside the report files.
type Publisher interface {
	PublishJoined(ctx context.Context, res *matcher.Result) error
}
