package mock

import (
	"context"

	"github.com/bakkerme/adhunter/internal/core"
)

type Fetcher struct {
	Refs  []core.AdReference
	Err   error
	Panic string
	Calls int
}

func (f *Fetcher) Fetch(ctx context.Context) ([]core.AdReference, error) {
	_ = ctx
	f.Calls++
	if f.Panic != "" {
		panic(f.Panic)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Refs, nil
}
